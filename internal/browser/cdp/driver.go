// internal/browser/cdp/driver.go
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

const defaultNavigationTimeout = 30 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshotScript evaluates one query and returns a plain snapshot of every
// element node it selects. Non-element XPath results are dropped.
const snapshotScript = `(function(kind, expr) {
	var nodes = [];
	if (kind === "css") {
		nodes = Array.prototype.slice.call(document.querySelectorAll(expr));
	} else {
		var r = document.evaluate(expr, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (var i = 0; i < r.snapshotLength; i++) {
			var n = r.snapshotItem(i);
			if (n.nodeType === Node.ELEMENT_NODE) nodes.push(n);
		}
	}
	return nodes.map(function(el) {
		var attrs = {};
		for (var j = 0; j < el.attributes.length; j++) {
			attrs[el.attributes[j].name] = el.attributes[j].value;
		}
		var style = window.getComputedStyle(el);
		var rect = el.getBoundingClientRect();
		var visible = style.display !== "none" && style.visibility !== "hidden" &&
			style.visibility !== "collapse" && rect.width > 0 && rect.height > 0;
		var text = el.innerText;
		if (text === undefined || text === null) text = el.textContent || "";
		return {tag: el.tagName.toLowerCase(), attrs: attrs, text: text, visible: visible};
	});
})(%s, %s)`

// Driver runs queries in a chromedp tab. Elements are snapshots taken at
// query time and go stale on the next navigation.
type Driver struct {
	tab        context.Context
	logger     *zap.Logger
	navTimeout time.Duration
	generation atomic.Uint64
}

var (
	_ browser.Driver    = (*Driver)(nil)
	_ browser.Actor     = (*Driver)(nil)
	_ browser.Navigator = (*Driver)(nil)
)

// NewDriver wraps an existing chromedp context.
func NewDriver(tab context.Context, navTimeout time.Duration, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}
	return &Driver{tab: tab, logger: logger.Named("cdp_driver"), navTimeout: navTimeout}
}

// run executes actions on the tab, cancelled by either ctx or the tab.
// A cancelled ctx is reported as ctx.Err().
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// buildSnapshotScript embeds q in snapshotScript as JSON string literals.
func buildSnapshotScript(q selector.Query) (string, error) {
	kind, err := json.Marshal(q.Kind.String())
	if err != nil {
		return "", fmt.Errorf("failed to encode query kind: %w", err)
	}
	expr, err := json.Marshal(q.Expr)
	if err != nil {
		return "", fmt.Errorf("failed to encode selector %s: %w", q, err)
	}
	return fmt.Sprintf(snapshotScript, kind, expr), nil
}

type snapshot struct {
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs"`
	Text    string            `json:"text"`
	Visible bool              `json:"visible"`
}

// FindElements implements browser.Driver.
func (d *Driver) FindElements(ctx context.Context, q selector.Query) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script, err := buildSnapshotScript(q)
	if err != nil {
		return nil, err
	}

	gen := d.generation.Load()
	var res []byte
	err = d.run(ctx, chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", q, err)
	}

	var snaps []snapshot
	if err := json.Unmarshal(res, &snaps); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", q, err)
	}
	out := make([]browser.Element, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, &element{driver: d, snap: s, generation: gen})
	}
	return out, nil
}

// Navigate loads url and invalidates previously returned elements.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	d.logger.Info("Navigating.", zap.String("url", url))
	d.generation.Add(1)
	if err := d.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, d.navTimeout, navCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func by(q selector.Query) chromedp.QueryOption {
	if q.Kind == selector.CSS {
		return chromedp.ByQuery
	}
	return chromedp.BySearch
}

// Click scrolls the first element q selects into view and clicks it.
func (d *Driver) Click(ctx context.Context, q selector.Query) error {
	err := d.run(ctx,
		chromedp.ScrollIntoView(q.Expr, by(q)),
		chromedp.WaitVisible(q.Expr, by(q)),
		chromedp.Click(q.Expr, by(q)),
	)
	if err != nil {
		return fmt.Errorf("failed to click %s: %w", q, err)
	}
	return nil
}

// Type clears the first element q selects and sends text as key events.
func (d *Driver) Type(ctx context.Context, q selector.Query, text string) error {
	err := d.run(ctx,
		chromedp.ScrollIntoView(q.Expr, by(q)),
		chromedp.WaitVisible(q.Expr, by(q)),
		chromedp.SetValue(q.Expr, "", by(q)),
		chromedp.SendKeys(q.Expr, text, by(q)),
	)
	if err != nil {
		return fmt.Errorf("failed to type into %s: %w", q, err)
	}
	return nil
}

type element struct {
	driver     *Driver
	snap       snapshot
	generation uint64
}

func (e *element) check() error {
	if e.driver.generation.Load() != e.generation {
		return browser.ErrStale
	}
	return nil
}

func (e *element) TagName() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.snap.Tag, nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	if err := e.check(); err != nil {
		return "", false, err
	}
	if v, ok := e.snap.Attrs[strings.ToLower(name)]; ok {
		return v, true, nil
	}
	return "", false, nil
}

func (e *element) Text() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(e.snap.Text), " "), nil
}

func (e *element) Visible() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return e.snap.Visible, nil
}
