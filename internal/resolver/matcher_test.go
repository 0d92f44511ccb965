// internal/resolver/matcher_test.go
package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-locator/internal/browser/static"
	"github.com/xkilldash9x/scalpel-locator/internal/candidate"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
)

func TestMatcher(t *testing.T) {
	dom, err := static.FromString(`<html><body><input id="a"><input id="b"></body></html>`, nil)
	require.NoError(t, err)
	m := NewMatcher(dom, 5*time.Millisecond, nil)
	ctx := context.Background()

	assert.Len(t, m.Query(ctx, "//input"), 2)
	assert.Len(t, m.Query(ctx, "input#b"), 1)
	assert.Empty(t, m.Query(ctx, "//input[@id='a'"), "malformed xpath reads as no match")
	assert.Empty(t, m.Query(ctx, "a[["), "malformed css reads as no match")
	assert.Empty(t, m.Query(ctx, "  "))

	els, ok := m.WaitFor(ctx, "#a", 20*time.Millisecond)
	assert.True(t, ok)
	assert.Len(t, els, 1)

	_, ok = m.WaitFor(ctx, "#missing", 20*time.Millisecond)
	assert.False(t, ok)
}

func TestCache(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("p", "a")
	assert.False(t, ok)

	c.Put("p", "a", "//a")
	c.Put("", "a", "//bare")
	sel, ok := c.Get("p", "a")
	assert.True(t, ok)
	assert.Equal(t, "//a", sel)
	assert.Equal(t, 2, c.Len())

	assert.True(t, c.Forget("p", "a"))
	assert.False(t, c.Forget("p", "a"))
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestPlan(t *testing.T) {
	opts := DefaultOptions()
	e := locator.Entry{
		Tag:        "button",
		XPath:      "//button[@id='save']",
		Alternates: []string{"//button[@id='save']", "//button[@name='save']"},
		Text:       "Save",
	}
	plan := Plan(e, opts, 20*time.Second)
	require.GreaterOrEqual(t, len(plan), 3)

	x, ok := plan[0].(Explicit)
	require.True(t, ok)
	assert.Equal(t, opts.ExplicitTimeoutCap, x.Timeout, "the explicit wait is capped")

	alt, ok := plan[1].(Alternate)
	require.True(t, ok, "an alternate equal to the explicit selector is skipped")
	assert.Equal(t, "//button[@name='save']", alt.Selector)
	assert.Equal(t, "alternate[1]", alt.String())

	h, ok := plan[2].(Heuristic)
	require.True(t, ok)
	assert.Equal(t, candidate.TierExplicit, h.Candidate.Tier)

	short := Plan(e, opts, time.Second)
	assert.Equal(t, time.Second, short[0].(Explicit).Timeout)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "explicit", KindExplicit.String())
	assert.Equal(t, "alternate", KindAlternate.String())
	assert.Equal(t, "heuristic", KindHeuristic.String())
}
