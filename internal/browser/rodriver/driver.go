// internal/browser/rodriver/driver.go
package rodriver

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/config"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	// accessTimeout bounds a single element property read.
	accessTimeout = 5 * time.Second
)

// Driver runs queries through a rod page. Element handles are remote
// objects, so reads after a navigation or DOM removal fail with
// browser.ErrStale.
type Driver struct {
	page       *rod.Page
	logger     *zap.Logger
	navTimeout time.Duration
	generation atomic.Uint64
}

var (
	_ browser.Driver    = (*Driver)(nil)
	_ browser.Actor     = (*Driver)(nil)
	_ browser.Navigator = (*Driver)(nil)
)

// NewDriver wraps an existing page.
func NewDriver(page *rod.Page, navTimeout time.Duration, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	return &Driver{page: page, logger: logger.Named("rod_driver"), navTimeout: navTimeout}
}

// NewLauncher configures a local Chrome launch from cfg.
func NewLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		Delete("enable-automation").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-extensions").
		Set("disable-gpu")
	if runtime.GOOS == "linux" {
		l = l.NoSandbox(true).Set("disable-dev-shm-usage").Set("disable-setuid-sandbox")
	}
	if cfg.IgnoreTLSErrors {
		l = l.Set("ignore-certificate-errors")
	}
	if cfg.ExecPath != "" {
		l = l.Bin(cfg.ExecPath)
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if key == "" {
			continue
		}
		if found {
			l = l.Set(flags.Flag(key), value)
		} else {
			l = l.Set(flags.Flag(key))
		}
	}
	return l
}

// Launch starts Chrome, connects and opens a blank page. The returned
// cancel func closes the browser and is never nil.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("rod_launcher")

	l := NewLauncher(cfg).Context(ctx)
	u, err := l.Launch()
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, func() {}, fmt.Errorf("failed to connect to browser: %w", err)
	}
	cancel := func() {
		if err := b.Close(); err != nil {
			log.Debug("Browser close reported an error.", zap.Error(err))
		}
		l.Kill()
		l.Cleanup()
	}
	if cfg.IgnoreTLSErrors {
		if err := b.IgnoreCertErrors(true); err != nil {
			log.Warn("Failed to ignore certificate errors.", zap.Error(err))
		}
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		cancel()
		return nil, func() {}, fmt.Errorf("failed to open page: %w", err)
	}
	log.Info("Browser started.", zap.Bool("headless", cfg.Headless), zap.String("control_url", u))
	return NewDriver(page, cfg.NavigationTimeout, logger), cancel, nil
}

// FindElements implements browser.Driver. rod's Elements and ElementsX do
// not wait, so zero matches come back immediately.
func (d *Driver) FindElements(ctx context.Context, q selector.Query) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen := d.generation.Load()
	p := d.page.Context(ctx)

	var (
		found rod.Elements
		err   error
	)
	if q.Kind == selector.CSS {
		found, err = p.Elements(q.Expr)
	} else {
		found, err = p.ElementsX(q.Expr)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to query %s: %w", q, err)
	}

	out := make([]browser.Element, 0, len(found))
	for _, el := range found {
		// Re-bind to the page context so reads outlive the query context.
		out = append(out, &element{driver: d, el: el.Context(context.Background()), generation: gen})
	}
	return out, nil
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	d.logger.Info("Navigating.", zap.String("url", url))
	d.generation.Add(1)
	p := d.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("navigation to %s did not finish loading: %w", url, err)
	}
	return nil
}

func (d *Driver) first(ctx context.Context, q selector.Query) (*rod.Element, error) {
	p := d.page.Context(ctx)
	if q.Kind == selector.CSS {
		return p.Element(q.Expr)
	}
	return p.ElementX(q.Expr)
}

// Click waits for the first element q selects and clicks it.
func (d *Driver) Click(ctx context.Context, q selector.Query) error {
	el, err := d.first(ctx, q)
	if err != nil {
		return fmt.Errorf("element not found matching selector %s: %w", q, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("failed to scroll to %s: %w", q, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %s: %w", q, err)
	}
	return nil
}

// Type replaces the value of the first element q selects.
func (d *Driver) Type(ctx context.Context, q selector.Query, text string) error {
	el, err := d.first(ctx, q)
	if err != nil {
		return fmt.Errorf("element not found matching selector %s: %w", q, err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("failed to type into %s: %w", q, err)
	}
	return nil
}

type element struct {
	driver     *Driver
	el         *rod.Element
	generation uint64
}

func (e *element) read() (*rod.Element, error) {
	if e.driver.generation.Load() != e.generation {
		return nil, browser.ErrStale
	}
	return e.el.Timeout(accessTimeout), nil
}

func stale(err error) error {
	return fmt.Errorf("%w: %v", browser.ErrStale, err)
}

func (e *element) TagName() (string, error) {
	el, err := e.read()
	if err != nil {
		return "", err
	}
	node, err := el.Describe(0, false)
	if err != nil {
		return "", stale(err)
	}
	return strings.ToLower(node.NodeName), nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	el, err := e.read()
	if err != nil {
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, stale(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Text() (string, error) {
	el, err := e.read()
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", stale(err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func (e *element) Visible() (bool, error) {
	el, err := e.read()
	if err != nil {
		return false, err
	}
	visible, err := el.Visible()
	if err != nil {
		return false, stale(err)
	}
	return visible, nil
}
