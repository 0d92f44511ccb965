// internal/browser/static/static.go
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// Driver evaluates selectors against a parsed HTML snapshot. XPath goes
// through htmlquery, CSS through cascadia via goquery. Loading a new document
// invalidates every element handed out for the previous one.
type Driver struct {
	logger *zap.Logger
	client *http.Client

	mu         sync.RWMutex
	root       *html.Node
	doc        *goquery.Document
	generation uint64
}

var (
	_ browser.Driver    = (*Driver)(nil)
	_ browser.Actor     = (*Driver)(nil)
	_ browser.Navigator = (*Driver)(nil)
)

// New creates a driver with an empty document.
func New(logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		logger: logger.Named("static_driver"),
		client: http.DefaultClient,
	}
	// An empty document keeps FindElements well defined before the first load.
	_ = d.LoadString("")
	return d
}

// FromString is a convenience for tests and the CLI.
func FromString(doc string, logger *zap.Logger) (*Driver, error) {
	d := New(logger)
	if err := d.LoadString(doc); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the current document.
func (d *Driver) Load(r io.Reader) error {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
	d.doc = goquery.NewDocumentFromNode(root)
	d.generation++
	return nil
}

// LoadString replaces the current document with doc.
func (d *Driver) LoadString(doc string) error {
	return d.Load(strings.NewReader(doc))
}

// Generation counts document loads.
func (d *Driver) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

// Navigate fetches url over plain HTTP and loads the response body. No
// scripts run, so this only suits server-rendered pages.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}
	d.logger.Debug("Loaded page.", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return d.Load(resp.Body)
}

// FindElements implements browser.Driver.
func (d *Driver) FindElements(ctx context.Context, q selector.Query) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, gen, err := d.query(q)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{driver: d, node: n, generation: gen})
	}
	return out, nil
}

// Click checks that q selects a visible element. Anchors are not followed.
func (d *Driver) Click(ctx context.Context, q selector.Query) error {
	n, err := d.one(ctx, q)
	if err != nil {
		return err
	}
	if !isVisible(n) {
		return fmt.Errorf("element %s is not visible", q)
	}
	d.logger.Debug("Click.", zap.Stringer("query", q))
	return nil
}

// Type sets the value attribute of the element q selects.
func (d *Driver) Type(ctx context.Context, q selector.Query, text string) error {
	n, err := d.one(ctx, q)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, a := range n.Attr {
		if a.Key == "value" {
			n.Attr[i].Val = text
			return nil
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "value", Val: text})
	return nil
}

func (d *Driver) one(ctx context.Context, q selector.Query) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, _, err := d.query(q)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("element not found matching selector %s", q)
	}
	return nodes[0], nil
}

func (d *Driver) query(q selector.Query) ([]*html.Node, uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch q.Kind {
	case selector.CSS:
		sel, err := cascadia.Compile(q.Expr)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid css selector %q: %w", q.Expr, err)
		}
		return d.doc.FindMatcher(sel).Nodes, d.generation, nil
	default:
		nodes, err := queryXPath(d.root, q.Expr)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid xpath selector %q: %w", q.Expr, err)
		}
		elements := nodes[:0]
		for _, n := range nodes {
			// Attribute results come back as detached synthetic nodes.
			if n.Type == html.ElementNode && n.Parent != nil {
				elements = append(elements, n)
			}
		}
		return elements, d.generation, nil
	}
}

func (d *Driver) current(gen uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation == gen
}

// element is a node pinned to the document generation it was found in.
type element struct {
	driver     *Driver
	node       *html.Node
	generation uint64
}

func (e *element) check() error {
	if !e.driver.current(e.generation) {
		return browser.ErrStale
	}
	return nil
}

func (e *element) TagName() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return strings.ToLower(e.node.Data), nil
}

func (e *element) Attribute(name string) (string, bool, error) {
	if err := e.check(); err != nil {
		return "", false, err
	}
	e.driver.mu.RLock()
	defer e.driver.mu.RUnlock()
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *element) Text() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(e.node)), " "), nil
}

func (e *element) Visible() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return isVisible(e.node), nil
}
