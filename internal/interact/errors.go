// internal/interact/errors.go
package interact

import (
	"errors"
	"strings"
)

// Sentinel errors for the interaction layer. State machines branch on these
// with errors.Is; everything else they treat as fatal and propagate.
var (
	// ErrActionTimeout means the element never satisfied its wait condition
	// within the step's timeout. Genuine absence: not retryable.
	ErrActionTimeout = errors.New("timed out waiting for element")

	// ErrElementNotFound means the element could not be resolved at all.
	// Not retryable.
	ErrElementNotFound = errors.New("element not found")

	// ErrStaleReference means a located node was invalidated by a DOM
	// mutation between resolution and use. Retryable: the next attempt
	// re-resolves the locator against the mutated DOM.
	ErrStaleReference = errors.New("stale element reference")

	// ErrClickFailed means every click attempt was consumed by retryable
	// failures.
	ErrClickFailed = errors.New("click failed after exhausting retries")

	// ErrInputFailed means a typing operation could not complete.
	ErrInputFailed = errors.New("input failed")

	// ErrTabSwitchTimeout means no new window appeared within the timeout.
	ErrTabSwitchTimeout = errors.New("no new tab opened within timeout")
)

// staleMarkers are substrings of CDP error messages that indicate the
// resolved node was invalidated by a DOM mutation. Chrome does not expose a
// dedicated error type for this, so the classification is textual.
var staleMarkers = []string{
	"could not find node",
	"no node with given id",
	"node with given id found",
	"detached from document",
	"not attached to the dom",
	"could not resolve node",
}

// IsStale reports whether an error indicates a stale element reference,
// either the exported sentinel or a CDP node-invalidation failure.
// Staleness implies the DOM mutated mid-read, so the caller may safely
// retry with a fresh resolution.
func IsStale(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleReference) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
