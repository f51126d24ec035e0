// internal/jira/exporter_test.go
package jira

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/download"
	"github.com/xkilldash9x/jirapull/internal/interact"
)

// navActor simulates the issue navigator: selectors listed in present
// resolve immediately, everything else blocks until the wait budget runs
// out.
type navActor struct {
	mu      sync.Mutex
	present map[string]bool
	clicks  map[string]int
	typed   map[string][]string

	// onClick runs after a dispatched click so tests can mutate page state
	// in response (a click landing a file in the download dir, say).
	onClick func(a *navActor, selector string)
}

func newNavActor(present ...string) *navActor {
	a := &navActor{
		present: make(map[string]bool),
		clicks:  make(map[string]int),
		typed:   make(map[string][]string),
	}
	for _, sel := range present {
		a.present[sel] = true
	}
	return a
}

func (a *navActor) Navigate(ctx context.Context, url string) error { return nil }

func (a *navActor) WaitReady(ctx context.Context, loc interact.Locator, cond interact.WaitCondition) error {
	a.mu.Lock()
	ok := a.present[loc.Selector]
	a.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (a *navActor) ScrollIntoView(ctx context.Context, loc interact.Locator) error { return nil }

func (a *navActor) DispatchClick(ctx context.Context, loc interact.Locator) error {
	a.mu.Lock()
	a.clicks[loc.Selector]++
	hook := a.onClick
	a.mu.Unlock()
	if hook != nil {
		hook(a, loc.Selector)
	}
	return nil
}

func (a *navActor) Focus(ctx context.Context, loc interact.Locator) error { return nil }

func (a *navActor) ClearValue(ctx context.Context, loc interact.Locator) error { return nil }

func (a *navActor) SendKeys(ctx context.Context, loc interact.Locator, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.typed[loc.Selector] = append(a.typed[loc.Selector], text)
	return nil
}

func (a *navActor) DocumentReady(ctx context.Context) (bool, error) { return true, nil }

func (a *navActor) WindowCount(ctx context.Context) (int, error) { return 1, nil }

func (a *navActor) FocusNewestWindow(ctx context.Context) (string, error) { return "", nil }

func (a *navActor) clicked(selector string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clicks[selector]
}

func exportTestConfig() config.Config {
	cfg := config.NewDefault()
	cfg.Jira.SearchURL = "https://example.atlassian.net/issues/"
	cfg.Jira.Query = `project = OPS AND status = "In Progress"`
	cfg.Timeouts.Action = 200 * time.Millisecond
	cfg.Timeouts.Input = 200 * time.Millisecond
	cfg.Timeouts.PageLoad = 100 * time.Millisecond
	cfg.Timeouts.ModeToggle = 60 * time.Millisecond
	cfg.Timeouts.ResultsSettle = 5 * time.Millisecond
	cfg.Timeouts.MenuSettle = 5 * time.Millisecond
	return cfg
}

func newTestExporter(t *testing.T, actor interact.Actor, cfg config.Config) (*Exporter, string) {
	t.Helper()
	dir := t.TempDir()
	prims := interact.New(actor, zap.NewNop(),
		interact.WithSettleBudgets(time.Millisecond, time.Millisecond),
		interact.WithStaleBackoff(time.Millisecond),
		interact.WithPollIntervals(5*time.Millisecond, 5*time.Millisecond),
	)
	detector := download.NewDetector(dir, 10*time.Millisecond, zap.NewNop())
	return New(prims, detector, cfg, zap.NewNop()), dir
}

func navigatorElements() []string {
	return []string{
		jqlEditor.Selector,
		searchButton.Selector,
		exportMenu.Selector,
		csvExportItem.Selector,
	}
}

func TestNewExporterStartsBeforeNavigation(t *testing.T) {
	exp, _ := newTestExporter(t, newNavActor(), exportTestConfig())
	assert.Equal(t, StateStart, exp.State())
}

func TestRunFullExport(t *testing.T) {
	elements := append(navigatorElements(), jqlModeToggle.Selector)
	actor := newNavActor(elements...)
	cfg := exportTestConfig()
	exp, dir := newTestExporter(t, actor, cfg)

	// The CSV option click is what produces the downloaded file.
	actor.onClick = func(a *navActor, selector string) {
		if selector == csvExportItem.Selector {
			path := filepath.Join(dir, "export.csv")
			require.NoError(t, os.WriteFile(path, []byte("key,summary\n"), 0o644))
		}
	}

	artifact, err := exp.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateDownloadHandedOff, exp.State())
	assert.Equal(t, 1, actor.clicked(jqlModeToggle.Selector), "basic mode must be toggled off")
	assert.Equal(t, []string{cfg.Jira.Query}, actor.typed[jqlEditor.Selector])
	assert.Equal(t, 1, actor.clicked(searchButton.Selector))
	assert.Equal(t, 1, actor.clicked(exportMenu.Selector))
	assert.Equal(t, 1, actor.clicked(csvExportItem.Selector))
	assert.Contains(t, filepath.Base(artifact.Path), cfg.Jira.ArtifactPrefix)
	assert.FileExists(t, artifact.Path)
}

func TestRunSkipsToggleWhenAlreadyInJQLMode(t *testing.T) {
	actor := newNavActor(navigatorElements()...)
	exp, dir := newTestExporter(t, actor, exportTestConfig())
	actor.onClick = func(a *navActor, selector string) {
		if selector == csvExportItem.Selector {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "export.csv"), []byte("k\n"), 0o644))
		}
	}

	_, err := exp.Run(context.Background())

	require.NoError(t, err, "missing toggle means JQL mode is already active")
	assert.Zero(t, actor.clicked(jqlModeToggle.Selector))
}

func TestRunFailsWhenEditorNeverAppears(t *testing.T) {
	actor := newNavActor(searchButton.Selector, exportMenu.Selector, csvExportItem.Selector)
	exp, _ := newTestExporter(t, actor, exportTestConfig())

	_, err := exp.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, interact.ErrInputFailed)
	assert.Equal(t, StateFailed, exp.State())
}

func TestRunFailsWhenExportMenuNeverAppears(t *testing.T) {
	actor := newNavActor(jqlEditor.Selector, searchButton.Selector)
	exp, _ := newTestExporter(t, actor, exportTestConfig())

	_, err := exp.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, interact.ErrActionTimeout)
	assert.Equal(t, StateFailed, exp.State())
	assert.Zero(t, actor.clicked(csvExportItem.Selector))
}

func TestRunFailsWhenNoDownloadAppears(t *testing.T) {
	actor := newNavActor(navigatorElements()...)
	exp, _ := newTestExporter(t, actor, exportTestConfig())

	_, err := exp.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, download.ErrNoFileFound)
	assert.Equal(t, StateFailed, exp.State())
}

func TestValidateQuery(t *testing.T) {
	cases := []struct {
		name string
		jql  string
		ok   bool
	}{
		{"simple clause", "project = OPS", true},
		{"quoted value", `status = "In Progress" ORDER BY created DESC`, true},
		{"empty", "   ", false},
		{"no clause keyword", "hello world", false},
		{"unbalanced quotes", `project = "OPS`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuery(tc.jql)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidQuery)
			}
		})
	}
}

func TestResultsCountProbe(t *testing.T) {
	t.Run("indicator present", func(t *testing.T) {
		actor := newNavActor(resultsIndicators[1].Selector)
		exp, _ := newTestExporter(t, actor, exportTestConfig())

		found, err := exp.ResultsCount(context.Background())
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("no indicator", func(t *testing.T) {
		actor := newNavActor()
		exp, _ := newTestExporter(t, actor, exportTestConfig())

		found, err := exp.ResultsCount(context.Background())
		require.NoError(t, err)
		assert.False(t, found)
	})
}
