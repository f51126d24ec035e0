// internal/jira/exporter.go
// The query/export state machine: navigate to the issue search page, make
// sure the JQL editor is active, submit the stored query, trigger the CSV
// export, and hand the result off to the download detector.
//
// Two waits here are deliberately blind. Issue search publishes no
// "results ready" signal, so query submission is followed by a fixed
// results-settle budget; the export dropdown animates open, so the format
// click is preceded by a fixed menu-settle budget. Both budgets live in the
// timeout configuration.
package jira

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/download"
	"github.com/xkilldash9x/jirapull/internal/interact"
)

// Issue navigator selectors.
var (
	// jqlModeToggle switches the search bar from basic to JQL mode. It is
	// only rendered while basic mode is active.
	jqlModeToggle = interact.XPath(`//button[span[text()='JQL']]`)
	jqlEditor     = interact.CSS(`div[data-testid='jql-editor-input']`)
	searchButton  = interact.CSS(`button[data-testid='jql-editor-search']`)
	exportMenu    = interact.XPath(`//button[@data-testid='issue-navigator-action-export-issues.ui.filter-button--trigger']`)
	csvExportItem = interact.XPath(`//span[text()='Export CSV (my defaults)']`)
)

// State identifies where the export flow currently is.
type State string

const (
	StateStart              State = "start"
	StateSearchPageLoaded   State = "search_page_loaded"
	StateQueryModeConfirmed State = "query_mode_confirmed"
	StateQuerySubmitted     State = "query_submitted"
	StateExportTriggered    State = "export_triggered"
	StateDownloadHandedOff  State = "download_handed_off"
	StateFailed             State = "failed"
)

// Exporter drives a JQL query and CSV export through the issue navigator.
type Exporter struct {
	prims    *interact.Primitives
	detector *download.Detector
	cfg      config.Config
	logger   *zap.Logger
	state    State
}

// New creates an exporter. The detector receives the hand-off once the
// export has been triggered.
func New(prims *interact.Primitives, detector *download.Detector, cfg config.Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		prims:    prims,
		detector: detector,
		cfg:      cfg,
		logger:   logger.Named("jira"),
		state:    StateStart,
	}
}

// State returns the exporter's current state.
func (e *Exporter) State() State {
	return e.state
}

func (e *Exporter) transition(next State) {
	e.logger.Debug("State transition",
		zap.String("from", string(e.state)), zap.String("to", string(next)))
	e.state = next
}

func (e *Exporter) fail(err error) error {
	e.transition(StateFailed)
	return err
}

// Run executes the full query-and-export sequence and returns the claimed
// artifact. Any step failure aborts the whole export.
func (e *Exporter) Run(ctx context.Context) (download.Artifact, error) {
	e.logger.Info("Starting JQL export", zap.String("url", e.cfg.Jira.SearchURL))

	if err := e.prims.Navigate(ctx, e.cfg.Jira.SearchURL); err != nil {
		return download.Artifact{}, e.fail(err)
	}
	if err := e.prims.WaitForPageReady(ctx, e.cfg.Timeouts.PageLoad); err != nil {
		return download.Artifact{}, e.fail(err)
	}
	e.transition(StateSearchPageLoaded)

	if err := e.ensureJQLMode(ctx); err != nil {
		return download.Artifact{}, e.fail(fmt.Errorf("ensuring JQL mode: %w", err))
	}
	e.transition(StateQueryModeConfirmed)

	if err := e.submitQuery(ctx); err != nil {
		return download.Artifact{}, e.fail(fmt.Errorf("query submission: %w", err))
	}
	e.transition(StateQuerySubmitted)

	if err := e.triggerExport(ctx); err != nil {
		return download.Artifact{}, e.fail(fmt.Errorf("export trigger: %w", err))
	}
	e.transition(StateExportTriggered)

	artifact, err := e.detector.Await(ctx, e.cfg.Jira.ArtifactPrefix)
	if err != nil {
		return download.Artifact{}, e.fail(fmt.Errorf("download detection: %w", err))
	}
	e.transition(StateDownloadHandedOff)

	e.logger.Info("JQL export complete", zap.String("artifact", artifact.Path))
	return artifact, nil
}

// ensureJQLMode clicks the mode toggle if it shows up within the short
// toggle budget. The toggle is only rendered while basic mode is active, so
// its absence is taken to mean JQL mode is already on. Preserved as
// observed; a page that is slow to render the toggle would be misread as
// already-in-JQL.
func (e *Exporter) ensureJQLMode(ctx context.Context) error {
	found, err := e.prims.WaitFor(ctx, jqlModeToggle, interact.Clickable, e.cfg.Timeouts.ModeToggle)
	if err != nil {
		return err
	}
	if !found {
		e.logger.Info("JQL mode already active")
		return nil
	}
	if err := e.prims.Click(ctx, jqlModeToggle, e.cfg.Timeouts.Action, e.cfg.Timeouts.ClickRetries); err != nil {
		return err
	}
	e.logger.Info("Switched to JQL mode")
	return nil
}

// submitQuery types the stored query into the editor, fires the search, and
// waits out the results-settle budget.
func (e *Exporter) submitQuery(ctx context.Context) error {
	t := e.cfg.Timeouts

	e.logger.Info("Executing JQL query", zap.String("query", e.cfg.Jira.Query))
	if err := e.prims.TypeText(ctx, jqlEditor, e.cfg.Jira.Query, t.Input, true); err != nil {
		return err
	}
	if err := e.prims.Click(ctx, searchButton, t.Action, t.ClickRetries); err != nil {
		return err
	}
	// No results-ready signal exists; wait out the settle budget instead.
	return e.prims.Settle(ctx, t.ResultsSettle)
}

// triggerExport opens the export menu, waits for its appear animation, and
// selects the CSV format.
func (e *Exporter) triggerExport(ctx context.Context) error {
	t := e.cfg.Timeouts

	e.logger.Info("Triggering CSV export")
	if err := e.prims.Click(ctx, exportMenu, t.Action, t.ClickRetries); err != nil {
		return err
	}
	if err := e.prims.Settle(ctx, t.MenuSettle); err != nil {
		return err
	}
	return e.prims.Click(ctx, csvExportItem, t.Action, t.ClickRetries)
}
