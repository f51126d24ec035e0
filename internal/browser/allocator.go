// internal/browser/allocator.go
package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/jirapull/internal/config"
)

// allocatorFlags assembles the Chrome flag set for a session as plain
// name/value pairs. Kept separate from the chromedp option conversion so it
// can be inspected in tests.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":           cfg.Headless,
		"disable-extensions": true,
		"disable-gpu":        cfg.Headless,
		// Hide navigator.webdriver so the provider's bot heuristics do not
		// block the login form.
		"disable-blink-features": "AutomationControlled",
	}

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)
	}

	// Custom arguments from configuration, "--name=value" or bare "--name".
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}

	// Containerized Linux needs the sandbox and shm workarounds.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	return flags
}

// AllocatorOptions converts the flag set into exec allocator options,
// starting from chromedp's defaults with the automation banner flag
// suppressed.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	// chromedp omits bool-false flags from the command line, which removes
	// the "Chrome is being controlled" banner the default emits.
	opts = append(opts, chromedp.Flag("enable-automation", false))

	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
