// internal/browser/cdp/launcher.go
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/config"
)

const startupTimeout = 30 * time.Second

// Flags returns the Chrome command line flags for cfg, keyed by flag name
// without the leading dashes. Custom args override the built-in ones.
func Flags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"enable-automation":                      false,
		"headless":                               cfg.Headless,
		"disable-blink-features":                 "AutomationControlled",
		"disable-extensions":                     true,
		"disable-gpu":                            true,
		"no-first-run":                           true,
		"no-default-browser-check":               true,
		"disable-background-networking":          true,
		"disable-renderer-backgrounding":         true,
		"disable-backgrounding-occluded-windows": true,
		"disable-features":                       "site-per-process,Translate",
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
	}
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// AllocatorOptions converts cfg into exec allocator options on top of the
// chromedp defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := Flags(cfg)
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, chromedp.Flag(k, flags[k]))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Launch starts a browser and opens one tab. The returned cancel func
// shuts the browser down and is never nil.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("cdp_launcher")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	sugar := log.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// 1. Start the browser on the tab context itself. A deadline on the first
	// Run would take the browser down with it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, func() {}, fmt.Errorf("failed to start browser: %w", err)
	}

	// 2. Make sure the tab answers before handing it out.
	verifyCtx, verifyCancel := context.WithTimeout(tabCtx, startupTimeout)
	defer verifyCancel()
	if err := chromedp.Run(verifyCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, func() {}, fmt.Errorf("browser did not become ready: %w", err)
	}

	log.Info("Browser started.", zap.Bool("headless", cfg.Headless), zap.String("exec_path", cfg.ExecPath))
	return NewDriver(tabCtx, cfg.NavigationTimeout, logger), cancel, nil
}
