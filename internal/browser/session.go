// internal/browser/session.go
// Session owns one Chrome process and its active tab, and exposes the raw
// element operations the interaction layer composes into resilient
// primitives. One live session exists per run.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/interact"
)

var _ interact.Actor = (*Session)(nil)

const (
	launchProbeTimeout = 30 * time.Second
	teardownTimeout    = 10 * time.Second
)

// Session is a live browser with one focused tab. Focus moves when the SSO
// hand-off opens a new tab; locator resolution always runs against the
// focused tab.
type Session struct {
	id     string
	cfg    config.Config
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
	// retired holds cancel funcs for tabs we switched away from; they are
	// released together at teardown.
	retired []context.CancelFunc
	// seen tracks every page target already adopted, so the newest window
	// is the one not in the set.
	seen     map[target.ID]bool
	isClosed bool
}

// NewSession launches the browser process, verifies it responds, and points
// Chrome's download machinery at the configured directory.
func NewSession(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	s := &Session{
		id:     id,
		cfg:    cfg,
		logger: logger.Named("browser").With(zap.String("session_id", id[:8])),
		seen:   make(map[target.ID]bool),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg.Browser)...)
	s.allocCtx = allocCtx
	s.allocCancel = allocCancel

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel

	probeCtx, cancelProbe := context.WithTimeout(tabCtx, launchProbeTimeout)
	defer cancelProbe()

	err := chromedp.Run(probeCtx,
		chromedp.Navigate("about:blank"),
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(cfg.Paths.DownloadDir),
	)
	if err != nil {
		allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		s.seen[c.Target.TargetID] = true
	}

	s.logger.Info("Browser session started",
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("download_dir", cfg.Paths.DownloadDir))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) tab() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabCtx
}

// run executes chromedp actions against the focused tab while honoring the
// caller's deadline and cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tab())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Prefer the caller's context error so deadline expiry surfaces as
		// such instead of a torn-down chromedp context.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func queryOpts(loc interact.Locator) chromedp.QueryOption {
	if loc.Strategy == interact.ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads the URL in the focused tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	return s.run(ctx, chromedp.Navigate(url))
}

// WaitReady blocks until the element satisfies the condition or the context
// expires. Clickable is visible plus enabled; CDP has no single query for
// it.
func (s *Session) WaitReady(ctx context.Context, loc interact.Locator, cond interact.WaitCondition) error {
	opt := queryOpts(loc)
	switch cond {
	case interact.Present:
		return s.run(ctx, chromedp.WaitReady(loc.Selector, opt))
	case interact.Clickable:
		return s.run(ctx,
			chromedp.WaitVisible(loc.Selector, opt),
			chromedp.WaitEnabled(loc.Selector, opt),
		)
	default:
		return s.run(ctx, chromedp.WaitVisible(loc.Selector, opt))
	}
}

// ScrollIntoView centers the element in the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, loc interact.Locator) error {
	return s.run(ctx, chromedp.ScrollIntoView(loc.Selector, queryOpts(loc)))
}

// DispatchClick fires a synthesized DOM click on the element. Element.click()
// is not blocked by overlays or partial occlusion the way a trusted pointer
// event is, which matters for the export dropdown.
func (s *Session) DispatchClick(ctx context.Context, loc interact.Locator) error {
	expr, err := jsClickExpr(loc)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.Evaluate(expr, nil))
}

// jsClickExpr builds the click expression for either locator strategy. The
// selector is JSON-encoded to survive embedded quotes.
func jsClickExpr(loc interact.Locator) (string, error) {
	sel, err := json.Marshal(loc.Selector)
	if err != nil {
		return "", fmt.Errorf("encoding selector: %w", err)
	}
	if loc.Strategy == interact.ByXPath {
		return fmt.Sprintf(
			`(() => {
				const node = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
				if (!node) { throw new Error("could not find node with given id: " + %s); }
				node.click();
			})()`, sel, sel), nil
	}
	return fmt.Sprintf(
		`(() => {
			const node = document.querySelector(%s);
			if (!node) { throw new Error("could not find node with given id: " + %s); }
			node.click();
		})()`, sel, sel), nil
}

// Focus gives the element input focus.
func (s *Session) Focus(ctx context.Context, loc interact.Locator) error {
	return s.run(ctx, chromedp.Focus(loc.Selector, queryOpts(loc)))
}

// ClearValue empties an input element.
func (s *Session) ClearValue(ctx context.Context, loc interact.Locator) error {
	return s.run(ctx, chromedp.Clear(loc.Selector, queryOpts(loc)))
}

// SendKeys types text into the element.
func (s *Session) SendKeys(ctx context.Context, loc interact.Locator, text string) error {
	return s.run(ctx, chromedp.SendKeys(loc.Selector, text, queryOpts(loc)))
}

// DocumentReady reports whether the focused tab finished loading.
func (s *Session) DocumentReady(ctx context.Context) (bool, error) {
	var state string
	if err := s.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return false, err
	}
	return state == "complete", nil
}

// WindowCount counts open page targets. Background targets (workers,
// extensions) are excluded.
func (s *Session) WindowCount(ctx context.Context) (int, error) {
	infos, err := s.targets(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, info := range infos {
		if info.Type == "page" {
			n++
		}
	}
	return n, nil
}

// FocusNewestWindow adopts a page target not yet seen by this session,
// makes it the focused tab, and returns its title. A target opened by the
// currently focused tab is preferred; target enumeration order is
// unspecified, so with several unadopted targets from other openers the
// pick among them is arbitrary.
func (s *Session) FocusNewestWindow(ctx context.Context) (string, error) {
	infos, err := s.targets(ctx)
	if err != nil {
		return "", err
	}

	var current target.ID
	if c := chromedp.FromContext(s.tab()); c != nil && c.Target != nil {
		current = c.Target.TargetID
	}

	s.mu.Lock()
	newest := pickUnadopted(infos, current, s.seen)
	if newest == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("no unadopted page target")
	}

	newTab, newCancel := chromedp.NewContext(s.tabCtx, chromedp.WithTargetID(newest.TargetID))
	s.retired = append(s.retired, s.tabCancel)
	s.tabCtx = newTab
	s.tabCancel = newCancel
	s.seen[newest.TargetID] = true
	s.mu.Unlock()

	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("adopting new tab: %w", err)
	}
	s.logger.Info("Focused new tab", zap.String("title", title))
	return title, nil
}

// pickUnadopted selects the page target to adopt: one opened by the current
// tab if there is one, otherwise the first unadopted page target. Caller
// holds the session lock.
func pickUnadopted(infos []*target.Info, current target.ID, seen map[target.ID]bool) *target.Info {
	var fallback *target.Info
	for _, info := range infos {
		if info.Type != "page" || seen[info.TargetID] {
			continue
		}
		if info.OpenerID == current {
			return info
		}
		if fallback == nil {
			fallback = info
		}
	}
	return fallback
}

func (s *Session) targets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := context.WithCancel(s.tab())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return infos, nil
}

// Screenshot captures the focused tab and writes it to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}
	s.logger.Info("Screenshot saved", zap.String("path", path))
	return nil
}

// Close waits out the download-drain delay, then tears down every tab and
// the browser process. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	tabCancel := s.tabCancel
	retired := s.retired
	s.mu.Unlock()

	// Chrome aborts in-flight downloads when the process exits, so give
	// any straggler time to land.
	if delay := s.cfg.Timeouts.CloseDelay; delay > 0 {
		s.logger.Info("Draining before close", zap.Duration("delay", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.logger.Warn("Drain cut short", zap.Error(ctx.Err()))
		}
	}

	for _, cancel := range retired {
		cancel()
	}
	if tabCancel != nil {
		tabCancel()
	}
	s.allocCancel()

	waitCtx, cancelWait := context.WithTimeout(ctx, teardownTimeout)
	defer cancelWait()
	select {
	case <-s.allocCtx.Done():
		s.logger.Debug("Browser session closed")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for browser teardown", zap.Error(waitCtx.Err()))
	}
	return nil
}
