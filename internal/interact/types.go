// internal/interact/types.go
// Core value types for the interaction layer: element locators, wait
// conditions, and the Actor capability the primitives drive.
package interact

import (
	"context"
	"fmt"
)

// Strategy selects how a selector string is interpreted when locating an
// element in the page.
type Strategy string

const (
	// ByCSS interprets the selector as a CSS query.
	ByCSS Strategy = "css"
	// ByXPath interprets the selector as an XPath expression.
	ByXPath Strategy = "xpath"
)

// Locator is an immutable (strategy, selector) pair identifying an element.
// It carries no handle to the underlying DOM node; every operation that
// consumes a Locator re-resolves it fresh, which is what makes retry loops
// safe against stale nodes.
type Locator struct {
	Strategy Strategy
	Selector string
}

// CSS builds a Locator for a CSS selector.
func CSS(selector string) Locator {
	return Locator{Strategy: ByCSS, Selector: selector}
}

// XPath builds a Locator for an XPath expression.
func XPath(expr string) Locator {
	return Locator{Strategy: ByXPath, Selector: expr}
}

func (l Locator) String() string {
	return fmt.Sprintf("%s(%q)", l.Strategy, l.Selector)
}

// WaitCondition enumerates the predicates an element wait can apply.
type WaitCondition int

const (
	// Visible waits until the element is rendered and visible.
	Visible WaitCondition = iota
	// Present waits until the element exists in the DOM, visible or not.
	Present
	// Clickable waits until the element is visible and enabled.
	Clickable
)

func (c WaitCondition) String() string {
	switch c {
	case Visible:
		return "visible"
	case Present:
		return "present"
	case Clickable:
		return "clickable"
	default:
		return fmt.Sprintf("WaitCondition(%d)", int(c))
	}
}

// Actor is the element-locate/act capability and window-count observable
// exposed by the browser session. The primitives own all timing policy
// (timeouts, retries, settle budgets); an Actor implementation performs each
// operation exactly once and reports what happened.
//
// Every Locator-taking method must resolve the locator fresh on each call.
// Blocking methods honor the supplied context; WaitReady in particular is
// expected to block until the condition holds or the context is done.
type Actor interface {
	// Navigate loads the given URL in the focused window.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the element satisfies the condition, the
	// context expires, or a non-recoverable failure occurs.
	WaitReady(ctx context.Context, loc Locator, cond WaitCondition) error

	// ScrollIntoView scrolls the element into the viewport center.
	ScrollIntoView(ctx context.Context, loc Locator) error

	// DispatchClick fires a click on the element through a mechanism that
	// is not defeated by overlays or partial visibility (a synthesized DOM
	// click rather than a trusted pointer event).
	DispatchClick(ctx context.Context, loc Locator) error

	// Focus gives the element input focus.
	Focus(ctx context.Context, loc Locator) error

	// ClearValue removes any existing content from an input element.
	ClearValue(ctx context.Context, loc Locator) error

	// SendKeys types the text into the focused element.
	SendKeys(ctx context.Context, loc Locator, text string) error

	// DocumentReady reports whether the document readiness signal indicates
	// a completed load.
	DocumentReady(ctx context.Context) (bool, error)

	// WindowCount returns the number of open top-level windows/tabs.
	WindowCount(ctx context.Context) (int, error)

	// FocusNewestWindow switches focus to the most recently opened window
	// and returns its title. Subsequent locator resolution is relative to
	// the newly focused window.
	FocusNewestWindow(ctx context.Context) (string, error)
}
