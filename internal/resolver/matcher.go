// internal/resolver/matcher.go
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// Matcher runs selector strings against a driver. Every failure, including a
// malformed selector, reads as "no elements".
type Matcher struct {
	driver   browser.Driver
	interval time.Duration
	logger   *zap.Logger
}

// NewMatcher wraps a driver. interval is the poll period of the wait helpers.
func NewMatcher(driver browser.Driver, interval time.Duration, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = browser.DefaultPollInterval
	}
	return &Matcher{driver: driver, interval: interval, logger: logger}
}

// Query classifies sel and returns its matches.
func (m *Matcher) Query(ctx context.Context, sel string) []browser.Element {
	q := selector.Parse(sel)
	if q.Expr == "" {
		return nil
	}
	els, err := m.driver.FindElements(ctx, q)
	if err != nil {
		m.logger.Debug("Query failed.", zap.Stringer("query", q), zap.Error(err))
		return nil
	}
	return els
}

// WaitFor polls until sel matches at least one element.
func (m *Matcher) WaitFor(ctx context.Context, sel string, timeout time.Duration) ([]browser.Element, bool) {
	return m.WaitMatch(ctx, sel, timeout, func(els []browser.Element) bool { return len(els) > 0 })
}

// WaitMatch polls until accept returns true for the current matches of sel.
func (m *Matcher) WaitMatch(ctx context.Context, sel string, timeout time.Duration, accept func([]browser.Element) bool) ([]browser.Element, bool) {
	var last []browser.Element
	err := browser.WaitUntil(ctx, timeout, m.interval, func(ctx context.Context) bool {
		last = m.Query(ctx, sel)
		return accept(last)
	})
	if err != nil {
		return nil, false
	}
	return last, true
}
