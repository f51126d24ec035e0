package jira

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/interact"
)

// ErrInvalidQuery reports a query that fails the local sanity check.
var ErrInvalidQuery = errors.New("invalid JQL query")

// jqlKeywords are the clause keywords a plausible query contains at least
// one of. The check is a tripwire for obviously broken input, not a parser;
// the server remains the authority on JQL syntax.
var jqlKeywords = []string{
	"project", "assignee", "reporter", "status", "created", "updated",
	"resolved", "priority", "labels", "sprint", "order by",
}

// resultsIndicators are the selectors the issue navigator has been observed
// rendering its result count under. Markup drifts between releases, so all
// of them are probed.
var resultsIndicators = []interact.Locator{
	interact.CSS(`span[data-testid='issue-navigator.ui.refinement-bar.issue-count']`),
	interact.CSS(`div[data-testid='issue-navigator.ui.issue-results.total-count']`),
	interact.XPath(`//span[contains(text(),' of ')]`),
}

// ValidateQuery runs a cheap local sanity check on a JQL string before it is
// ever typed into the editor: non-empty, at least one recognizable clause
// keyword, and balanced double quotes.
func ValidateQuery(jql string) error {
	trimmed := strings.TrimSpace(jql)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	lower := strings.ToLower(trimmed)
	hasKeyword := false
	for _, kw := range jqlKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return fmt.Errorf("%w: no recognizable JQL clause", ErrInvalidQuery)
	}

	if strings.Count(trimmed, `"`)%2 != 0 {
		return fmt.Errorf("%w: unbalanced quotes", ErrInvalidQuery)
	}
	return nil
}

// ResultsCount probes the known result-count selectors and reports whether
// any of them rendered. Best effort: a false return means no indicator was
// seen within the settle budget, not that the query returned nothing.
func (e *Exporter) ResultsCount(ctx context.Context) (bool, error) {
	for _, loc := range resultsIndicators {
		found, err := e.prims.WaitFor(ctx, loc, interact.Visible, e.cfg.Timeouts.ResultsSettle)
		if err != nil {
			return false, err
		}
		if found {
			e.logger.Debug("Results indicator located", zap.String("locator", loc.String()))
			return true, nil
		}
	}
	return false, nil
}
