// internal/candidate/candidate.go
package candidate

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// DefaultMinStablePrefix is the shortest alphabetic prefix worth a
// starts-with candidate.
const DefaultMinStablePrefix = 3

// Tier is the precedence level a candidate was generated at.
type Tier int

const (
	TierExplicit Tier = iota
	TierStrongAttr
	TierLabel
	TierCombined
	TierFuzzy
	TierText
	TierFallback
)

var tierNames = [...]string{"explicit", "strong_attr", "label", "combined", "fuzzy", "text", "fallback"}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// Candidate is one generated selector.
type Candidate struct {
	Selector string
	Tier     Tier
}

// Options tunes generation.
type Options struct {
	// MinStablePrefix is the minimum length of a stable prefix. Zero means
	// DefaultMinStablePrefix.
	MinStablePrefix int
}

var (
	strongAttrs   = []string{"id", "data-testid", "name"}
	comboAttrs    = []string{"id", "name", "type", "placeholder", "aria-label", "role", "data-testid", "data-id", "data-value", "aria-colindex"}
	fuzzyAttrs    = []string{"id", "name", "class"}
	softTextAttrs = []string{"placeholder", "aria-label"}

	leadingLetters = regexp.MustCompile(`^[A-Za-z]+`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// Generate produces the ordered, de-duplicated candidate list for an entry,
// most specific first. When the entry declares an explicit selector, generic
// candidates (bare tags, class-only predicates) are moved to the end.
func Generate(e locator.Entry, opts Options) []Candidate {
	minPrefix := opts.MinStablePrefix
	if minPrefix <= 0 {
		minPrefix = DefaultMinStablePrefix
	}
	tag := strings.TrimSpace(e.Tag)
	if !selector.IsTagName(tag) {
		tag = "*"
	}

	var out []Candidate
	seen := make(map[string]struct{})
	add := func(tier Tier, sel string) {
		if sel == "" {
			return
		}
		if _, dup := seen[sel]; dup {
			return
		}
		seen[sel] = struct{}{}
		out = append(out, Candidate{Selector: sel, Tier: tier})
	}
	find := func(preds ...selector.Predicate) string {
		return selector.Find(tag, preds...).String()
	}

	// 1. Explicit selectors.
	if e.XPath != "" {
		add(TierExplicit, e.XPath)
	}
	if e.CSS != "" {
		add(TierExplicit, selector.CSSToXPath(e.CSS))
	}

	// 2. Strong attribute equality.
	for _, a := range strongAttrs {
		if v := e.Attr(a); v != "" {
			add(TierStrongAttr, find(selector.AttrEquals{Name: a, Value: v}))
		}
	}

	// 3. Label anchored, exact then substring.
	if label := firstNonEmpty(e.Label, e.Text); label != "" {
		for _, pred := range []selector.Predicate{
			selector.TextEquals{Value: label},
			selector.TextContains{Value: label},
		} {
			add(TierLabel, selector.Path{
				{Axis: selector.Descendant, Tag: "label", Predicates: []selector.Predicate{pred}},
				{Axis: selector.Following, Tag: tag, Predicates: []selector.Predicate{selector.Position(1)}},
			}.String())
		}
	}

	// 4. Combined equality over everything declared.
	var combo selector.And
	for _, a := range comboAttrs {
		if v := e.Attr(a); v != "" {
			combo = append(combo, selector.AttrEquals{Name: a, Value: v})
		}
	}
	if len(combo) > 0 {
		add(TierCombined, find(combo))
	}

	// 5. Dynamic value variants.
	for _, a := range fuzzyAttrs {
		v := e.Attr(a)
		if v == "" {
			continue
		}
		if prefix, ok := StablePrefix(v, minPrefix); ok {
			add(TierFuzzy, find(selector.AttrStartsWith{Name: a, Value: prefix}))
		}
		add(TierFuzzy, find(selector.AttrContains{Name: a, Value: v}))
	}
	for _, a := range softTextAttrs {
		if v := e.Attr(a); v != "" {
			add(TierFuzzy, find(selector.AttrContains{Name: a, Value: Normalize(v), Normalize: true}))
		}
	}

	// 6. Visible text, exact then substring.
	if txt := Normalize(e.Text); txt != "" {
		add(TierText, find(selector.TextEquals{Value: txt}))
		add(TierText, find(selector.TextContains{Value: txt}))
	}

	// 7. Last resort.
	if v := e.Attr("type"); v != "" {
		add(TierFallback, find(selector.AttrEquals{Name: "type", Value: v}))
	}
	add(TierFallback, selector.Find(tag).String())

	if e.Explicit() != "" {
		out = demoteGeneric(out)
	}
	return out
}

// Selectors returns just the selector strings of cands.
func Selectors(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Selector
	}
	return out
}

// StablePrefix returns the leading ASCII-letter run of s when it is at least
// minLen long. "email_input_123" yields "email".
func StablePrefix(s string, minLen int) (string, bool) {
	m := leadingLetters.FindString(s)
	if len(m) < minLen || m == "" {
		return "", false
	}
	return m, true
}

// Normalize collapses runs of whitespace and trims the result.
func Normalize(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// demoteGeneric is a stable partition: specific candidates keep their order,
// generic ones follow in theirs.
func demoteGeneric(cands []Candidate) []Candidate {
	strong := make([]Candidate, 0, len(cands))
	var generic []Candidate
	for _, c := range cands {
		if selector.IsGeneric(c.Selector) {
			generic = append(generic, c)
			continue
		}
		strong = append(strong, c)
	}
	return append(strong, generic...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
