// internal/interact/primitives.go
// This file implements the bounded-retry, bounded-timeout interaction
// primitives the workflow state machines are built on. The central policy
// decision lives in Click: a stale-element failure means the DOM mutated
// between resolving the element and acting on it, so the attempt is repeated
// with a fresh resolution; a wait timeout means the element is genuinely
// absent, so retrying cannot help and the failure is surfaced immediately.
package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// clickSettle is the pause between scrolling an element into view and
	// dispatching the click, covering scroll animation and re-layout.
	clickSettle = 500 * time.Millisecond

	// focusSettle is the pause between focusing an input and mutating its
	// value.
	focusSettle = 200 * time.Millisecond

	// staleBackoff is the pause before re-entering the click loop after a
	// stale-element failure.
	staleBackoff = 1 * time.Second

	// readyPollInterval is how often the document readiness signal is
	// sampled by WaitForPageReady.
	readyPollInterval = 250 * time.Millisecond

	// windowPollInterval is how often the window count is sampled by
	// SwitchToNewTab.
	windowPollInterval = 250 * time.Millisecond
)

// Primitives provides reliable UI actions over a single browser handle.
// All operations are synchronous and sequential; each owns its timeout.
type Primitives struct {
	actor  Actor
	logger *zap.Logger

	// Overridable in tests to keep retry loops fast.
	clickSettle  time.Duration
	focusSettle  time.Duration
	staleBackoff time.Duration
	readyPoll    time.Duration
	windowPoll   time.Duration
}

// Option adjusts a Primitives timing budget. Production code uses the
// defaults; tests shrink them to keep retry loops fast.
type Option func(*Primitives)

// WithSettleBudgets overrides the click and focus settle delays.
func WithSettleBudgets(click, focus time.Duration) Option {
	return func(p *Primitives) {
		p.clickSettle = click
		p.focusSettle = focus
	}
}

// WithStaleBackoff overrides the pause between stale-click retries.
func WithStaleBackoff(d time.Duration) Option {
	return func(p *Primitives) {
		p.staleBackoff = d
	}
}

// WithPollIntervals overrides the readiness and window-count poll intervals.
func WithPollIntervals(ready, window time.Duration) Option {
	return func(p *Primitives) {
		p.readyPoll = ready
		p.windowPoll = window
	}
}

// New creates interaction primitives over the given browser actor.
func New(actor Actor, logger *zap.Logger, opts ...Option) *Primitives {
	p := &Primitives{
		actor:        actor,
		logger:       logger.Named("interact"),
		clickSettle:  clickSettle,
		focusSettle:  focusSettle,
		staleBackoff: staleBackoff,
		readyPoll:    readyPollInterval,
		windowPoll:   windowPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Navigate loads the URL in the focused window.
func (p *Primitives) Navigate(ctx context.Context, url string) error {
	p.logger.Info("Navigating", zap.String("url", url))
	if err := p.actor.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Click waits for the element to become clickable, scrolls it into view,
// settles, and dispatches the click. Up to retries attempts are made; each
// attempt re-resolves the element fresh. A stale-element failure re-enters
// the loop after a short backoff. A wait timeout fails immediately with
// ErrActionTimeout. Exhausting all attempts fails with ErrClickFailed.
func (p *Primitives) Click(ctx context.Context, loc Locator, timeout time.Duration, retries int) error {
	if retries < 1 {
		retries = 1
	}
	for attempt := 1; attempt <= retries; attempt++ {
		err := p.clickOnce(ctx, loc, timeout)
		if err == nil {
			p.logger.Debug("Click succeeded",
				zap.Stringer("locator", loc), zap.Int("attempt", attempt))
			return nil
		}
		if errors.Is(err, ErrActionTimeout) {
			p.logger.Error("Element never became clickable",
				zap.Stringer("locator", loc), zap.Duration("timeout", timeout))
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsStale(err) {
			return fmt.Errorf("clicking %s: %w", loc, err)
		}
		p.logger.Warn("Stale element during click, retrying",
			zap.Stringer("locator", loc),
			zap.Int("attempt", attempt), zap.Int("retries", retries))
		if attempt < retries {
			if err := sleepCtx(ctx, p.staleBackoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("clicking %s after %d attempts: %w", loc, retries, ErrClickFailed)
}

// clickOnce performs a single resolve-wait-scroll-settle-click cycle.
func (p *Primitives) clickOnce(ctx context.Context, loc Locator, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.actor.WaitReady(waitCtx, loc, Clickable); err != nil {
		if IsStale(err) {
			return err
		}
		if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("element %s not clickable within %v: %w", loc, timeout, ErrActionTimeout)
		}
		return err
	}
	if err := p.actor.ScrollIntoView(ctx, loc); err != nil {
		return err
	}
	if err := sleepCtx(ctx, p.clickSettle); err != nil {
		return err
	}
	return p.actor.DispatchClick(ctx, loc)
}

// TypeText waits for the element to become visible, focuses it, optionally
// clears any existing content, and submits the text. A wait timeout fails
// with ErrInputFailed.
func (p *Primitives) TypeText(ctx context.Context, loc Locator, text string, timeout time.Duration, clearFirst bool) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.actor.WaitReady(waitCtx, loc, Visible); err != nil {
		if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			p.logger.Error("Element never became visible for input",
				zap.Stringer("locator", loc), zap.Duration("timeout", timeout))
			return fmt.Errorf("element %s not visible within %v: %w", loc, timeout, ErrInputFailed)
		}
		return fmt.Errorf("waiting for %s: %w", loc, err)
	}
	if err := p.actor.Focus(ctx, loc); err != nil {
		return fmt.Errorf("focusing %s: %w", loc, err)
	}
	if err := sleepCtx(ctx, p.focusSettle); err != nil {
		return err
	}
	if clearFirst {
		if err := p.actor.ClearValue(ctx, loc); err != nil {
			return fmt.Errorf("clearing %s: %w", loc, err)
		}
	}
	if err := p.actor.SendKeys(ctx, loc, text); err != nil {
		return fmt.Errorf("typing into %s: %w", loc, ErrInputFailed)
	}
	p.logger.Debug("Typed text", zap.Stringer("locator", loc), zap.Int("text_length", len(text)))
	return nil
}

// WaitFor blocks until the element satisfies the condition or the timeout
// elapses, and reports the outcome as an explicit found/not-found result.
// Timing out is not an error here: call sites that tolerate absence (the
// MFA probe, the JQL-mode toggle) branch on found. Genuine actor failures
// are still returned as errors.
func (p *Primitives) WaitFor(ctx context.Context, loc Locator, cond WaitCondition, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.actor.WaitReady(waitCtx, loc, cond)
	if err == nil {
		p.logger.Debug("Element found",
			zap.Stringer("locator", loc), zap.Stringer("condition", cond))
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if waitCtx.Err() == context.DeadlineExceeded {
		p.logger.Debug("Element absent within timeout",
			zap.Stringer("locator", loc), zap.Duration("timeout", timeout))
		return false, nil
	}
	return false, fmt.Errorf("waiting for %s: %w", loc, err)
}

// WaitForPageReady polls the document readiness signal until the page
// reports a completed load. A timeout is logged and tolerated: this is a
// best-effort step and the workflow proceeds regardless.
func (p *Primitives) WaitForPageReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ready, err := p.actor.DocumentReady(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Debug("Readiness probe failed, continuing to poll", zap.Error(err))
		} else if ready {
			p.logger.Debug("Page load complete")
			return nil
		}
		if err := sleepCtx(ctx, p.readyPoll); err != nil {
			return err
		}
	}
	p.logger.Warn("Page load timeout, continuing anyway", zap.Duration("timeout", timeout))
	return nil
}

// WindowCount reports the number of open windows. Callers record it before
// an action that opens a tab, then pass it to SwitchToNewTab as the
// baseline.
func (p *Primitives) WindowCount(ctx context.Context) (int, error) {
	count, err := p.actor.WindowCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("observing window count: %w", err)
	}
	return count, nil
}

// SwitchToNewTab blocks until the window count increases past the given
// baseline, then focuses the most recently opened window and returns its
// title. Fails with ErrTabSwitchTimeout if no window appears. The baseline
// must be captured before the action that opens the tab, otherwise a fast
// tab is mistaken for a pre-existing one.
func (p *Primitives) SwitchToNewTab(ctx context.Context, baseline int, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		count, err := p.actor.WindowCount(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("observing window count: %w", err)
		}
		if count > baseline {
			title, err := p.actor.FocusNewestWindow(ctx)
			if err != nil {
				return "", fmt.Errorf("focusing new tab: %w", err)
			}
			p.logger.Info("Switched to new tab", zap.String("title", title))
			return title, nil
		}
		if err := sleepCtx(ctx, p.windowPoll); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("window count stayed at %d for %v: %w", baseline, timeout, ErrTabSwitchTimeout)
}

// Settle blocks for the given duration, honoring context cancellation. The
// state machines use this for their named settle budgets where no positive
// readiness signal exists.
func (p *Primitives) Settle(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
