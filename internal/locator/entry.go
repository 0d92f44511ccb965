// internal/locator/entry.go
package locator

import (
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// MaxAlternates caps the alternates list of a persisted entry.
const MaxAlternates = 10

// Keys with a dedicated Entry field. Every other string-valued key of a
// definition object is an attribute.
const (
	keyTag        = "tag"
	keyText       = "text"
	keyLabel      = "label"
	keyXPath      = "xpath"
	keyCSS        = "css"
	keyAlternates = "alternates"
	keyTemplate   = "xpath_template"
	keyDefaults   = "defaults"
)

// RecognizedAttributes are the attribute keys the candidate generator and the
// scorer know how to use.
var RecognizedAttributes = []string{
	"id", "name", "placeholder", "aria-label", "type", "class",
	"role", "data-testid", "data-id", "data-value", "aria-colindex",
}

// Entry is the declarative description of one logical element on one page.
type Entry struct {
	Tag        string
	Attributes map[string]string
	Text       string
	Label      string

	// At most one of XPath and CSS is populated.
	XPath string
	CSS   string

	// Alternates are previously working selectors, most recent first. A nil
	// slice means "not declared", which matters when merging overlays.
	Alternates []string

	Template string
	Defaults map[string]any

	// Extra keeps non-string keys that have no dedicated field, and unusable
	// tag values, so they survive a load/save round trip.
	Extra map[string]any
}

// Attr returns a declared attribute, or "" when absent.
func (e Entry) Attr(name string) string {
	return e.Attributes[name]
}

// HasAttr reports whether the attribute is declared with a non-empty value.
func (e Entry) HasAttr(name string) bool {
	return e.Attributes[name] != ""
}

// Explicit returns the declared explicit selector, xpath first.
func (e Entry) Explicit() string {
	if e.XPath != "" {
		return e.XPath
	}
	return e.CSS
}

// SetSelector stores sel as the explicit selector in the field matching its
// syntax and clears the other one.
func (e *Entry) SetSelector(sel string) {
	if selector.Parse(sel).Kind == selector.XPath {
		e.XPath = sel
		e.CSS = ""
		return
	}
	e.CSS = sel
	e.XPath = ""
}

// IsZero reports whether the entry declares nothing at all.
func (e Entry) IsZero() bool {
	return e.Tag == "" && len(e.Attributes) == 0 && e.Text == "" && e.Label == "" &&
		e.XPath == "" && e.CSS == "" && e.Alternates == nil && e.Template == "" &&
		len(e.Defaults) == 0 && len(e.Extra) == 0
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	out := e
	out.Attributes = cloneStrings(e.Attributes)
	if e.Alternates != nil {
		out.Alternates = append([]string{}, e.Alternates...)
	}
	out.Defaults = cloneAny(e.Defaults)
	out.Extra = cloneAny(e.Extra)
	return out
}

// Merge layers overlay over base field by field. Non-empty overlay fields win,
// attributes and defaults merge key by key, and a declared overlay alternates
// list replaces the base list. An overlay xpath clears a base css and vice
// versa, so the merged entry still has a single explicit selector.
func Merge(base, overlay Entry) Entry {
	out := base.Clone()

	if overlay.Tag != "" {
		out.Tag = overlay.Tag
	}
	if overlay.Text != "" {
		out.Text = overlay.Text
	}
	if overlay.Label != "" {
		out.Label = overlay.Label
	}
	for k, v := range overlay.Attributes {
		if out.Attributes == nil {
			out.Attributes = make(map[string]string, len(overlay.Attributes))
		}
		out.Attributes[k] = v
	}

	switch {
	case overlay.XPath != "":
		out.XPath = overlay.XPath
		out.CSS = ""
	case overlay.CSS != "":
		out.CSS = overlay.CSS
		out.XPath = ""
	}

	if overlay.Alternates != nil {
		out.Alternates = append([]string{}, overlay.Alternates...)
	}
	if overlay.Template != "" {
		out.Template = overlay.Template
	}
	out.Defaults = mergeAny(out.Defaults, overlay.Defaults)
	out.Extra = mergeAny(out.Extra, overlay.Extra)
	return out
}

// MergeAll applies an overlay to a full page of base entries. Overlay-only
// names are included verbatim.
func MergeAll(base map[string]Entry, overlay Overlay) map[string]Entry {
	out := make(map[string]Entry, len(base)+len(overlay))
	for name, e := range base {
		out[name] = e.Clone()
	}
	for name, o := range overlay {
		if b, ok := out[name]; ok {
			out[name] = Merge(b, o)
			continue
		}
		out[name] = o.Clone()
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAny(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeAny(base, overlay map[string]any) map[string]any {
	if len(overlay) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]any, len(overlay))
	}
	for k, v := range overlay {
		base[k] = v
	}
	return base
}
