// internal/browser/session_test.go
package browser

import (
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
)

func page(id, opener target.ID) *target.Info {
	return &target.Info{TargetID: id, OpenerID: opener, Type: "page"}
}

func TestPickUnadopted(t *testing.T) {
	const current = target.ID("tab-0")
	seen := map[target.ID]bool{current: true}

	t.Run("prefers target opened by the current tab", func(t *testing.T) {
		infos := []*target.Info{
			page(current, ""),
			page("stray", "elsewhere"),
			page("sso", current),
		}
		picked := pickUnadopted(infos, current, seen)
		assert.Equal(t, target.ID("sso"), picked.TargetID)
	})

	t.Run("falls back to any unadopted page", func(t *testing.T) {
		infos := []*target.Info{
			page(current, ""),
			page("stray", "elsewhere"),
		}
		picked := pickUnadopted(infos, current, seen)
		assert.Equal(t, target.ID("stray"), picked.TargetID)
	})

	t.Run("ignores non-page and seen targets", func(t *testing.T) {
		worker := &target.Info{TargetID: "w", OpenerID: current, Type: "service_worker"}
		infos := []*target.Info{page(current, ""), worker}
		assert.Nil(t, pickUnadopted(infos, current, seen))
	})
}
