// internal/page/page.go
package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/resolver"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

var (
	// ErrNotUnique is returned when a resolved selector matches zero or
	// several elements.
	ErrNotUnique = errors.New("selector does not match exactly one element")
	// ErrNoActor is returned by Click and Type when the driver cannot
	// interact with the page.
	ErrNoActor = errors.New("driver does not support interaction")
)

// Page drives one page through logical names.
type Page struct {
	resolver *resolver.Resolver
	actor    browser.Actor
	logger   *zap.Logger
}

// New creates a page helper. When driver also implements browser.Actor it is
// used for Click and Type.
func New(r *resolver.Resolver, driver browser.Driver, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Page{
		resolver: r,
		logger:   logger.Named("page").With(zap.String("page", r.Page())),
	}
	if a, ok := driver.(browser.Actor); ok {
		p.actor = a
	}
	return p
}

// Resolver returns the underlying resolver.
func (p *Page) Resolver() *resolver.Resolver { return p.resolver }

func (p *Page) selector(ctx context.Context, name string, strict bool) (string, error) {
	if strict {
		return p.resolver.ResolveStrict(ctx, name)
	}
	return p.resolver.Resolve(ctx, name)
}

// Find resolves name and waits for its selector to match exactly one element.
func (p *Page) Find(ctx context.Context, name string, strict bool) (browser.Element, error) {
	el, _, err := p.find(ctx, name, strict)
	return el, err
}

func (p *Page) find(ctx context.Context, name string, strict bool) (browser.Element, string, error) {
	sel, err := p.selector(ctx, name, strict)
	if err != nil {
		return nil, "", err
	}
	timeout := p.resolver.Options().PrimaryTimeout
	var count int
	els, ok := p.resolver.Matcher().WaitMatch(ctx, sel, timeout, func(els []browser.Element) bool {
		count = len(els)
		return count == 1
	})
	if !ok {
		return nil, sel, fmt.Errorf("%w: %s matched %d elements", ErrNotUnique, sel, count)
	}
	return els[0], sel, nil
}

// IsPresent reports whether name currently resolves to an element. Resolution
// failures read as false.
func (p *Page) IsPresent(ctx context.Context, name string, strict bool) bool {
	sel, err := p.selector(ctx, name, strict)
	if err != nil {
		p.logger.Debug("Not present.", zap.String("name", name), zap.Error(err))
		return false
	}
	return len(p.resolver.Matcher().Query(ctx, sel)) > 0
}

// IsVisible reports whether name resolves to a visible element.
func (p *Page) IsVisible(ctx context.Context, name string) bool {
	el, err := p.Find(ctx, name, false)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

// Text returns the rendered text of name.
func (p *Page) Text(ctx context.Context, name string) (string, error) {
	el, err := p.Find(ctx, name, false)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// Attribute returns an attribute of name and whether it is present.
func (p *Page) Attribute(ctx context.Context, name, attr string) (string, bool, error) {
	el, err := p.Find(ctx, name, false)
	if err != nil {
		return "", false, err
	}
	return el.Attribute(attr)
}

// Click resolves name and clicks it.
func (p *Page) Click(ctx context.Context, name string) error {
	return p.act(ctx, name, "click", func(q selector.Query) error {
		return p.actor.Click(ctx, q)
	})
}

// Type resolves name and types text into it.
func (p *Page) Type(ctx context.Context, name, text string) error {
	return p.act(ctx, name, "type", func(q selector.Query) error {
		return p.actor.Type(ctx, q, text)
	})
}

func (p *Page) act(ctx context.Context, name, action string, do func(selector.Query) error) error {
	if p.actor == nil {
		return ErrNoActor
	}
	start := time.Now()
	_, sel, err := p.find(ctx, name, false)
	if err != nil {
		return err
	}
	if err := do(selector.Parse(sel)); err != nil {
		return fmt.Errorf("failed to %s %q: %w", action, name, err)
	}
	p.logger.Debug("Interacted.", zap.String("action", action), zap.String("name", name),
		zap.String("selector", sel), zap.Duration("duration", time.Since(start)))
	return nil
}

// Render fills the xpath_template of name with params.
func (p *Page) Render(name string, params map[string]any) (string, error) {
	e, ok := p.resolver.Entry(name)
	if !ok {
		return "", fmt.Errorf("%w: %q on page %q", resolver.ErrEntryNotFound, name, p.resolver.Page())
	}
	return locator.RenderTemplate(e, params)
}
