// internal/locator/codec.go
package locator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// Overlay maps logical names to partial entries layered over a page's base
// definitions.
type Overlay map[string]Entry

// codec writes stable, human-diffable JSON: sorted keys and no HTML escaping,
// so selectors like "a > b" stay readable in the files.
var codec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Decode parses a page definition or overlay document.
func Decode(data []byte) (map[string]Entry, error) {
	var raw map[string]map[string]any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse locator document: %w", err)
	}
	out := make(map[string]Entry, len(raw))
	for name, fields := range raw {
		out[name] = FromFields(fields)
	}
	return out, nil
}

// Encode renders entries as indented JSON with sorted keys. An empty
// document renders as "{}".
func Encode(entries map[string]Entry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("{}\n"), nil
	}
	doc := make(map[string]map[string]any, len(entries))
	for name, e := range entries {
		doc[name] = e.Fields()
	}
	data, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode locator document: %w", err)
	}
	// jsoniter misindents nested sorted maps, so indent the compact form.
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent locator document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// MarshalJSON renders the entry in its flat definition-file shape.
func (e Entry) MarshalJSON() ([]byte, error) {
	return codec.Marshal(e.Fields())
}

// UnmarshalJSON parses the flat definition-file shape.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := codec.Unmarshal(data, &fields); err != nil {
		return err
	}
	*e = FromFields(fields)
	return nil
}

// Fields flattens the entry back into a definition object. Empty fields are
// omitted, except a declared (non-nil) alternates list.
func (e Entry) Fields() map[string]any {
	out := make(map[string]any, len(e.Attributes)+len(e.Extra)+8)
	for k, v := range e.Extra {
		out[k] = v
	}
	for k, v := range e.Attributes {
		out[k] = v
	}
	setIf := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}
	setIf(keyTag, e.Tag)
	setIf(keyText, e.Text)
	setIf(keyLabel, e.Label)
	setIf(keyXPath, e.XPath)
	setIf(keyCSS, e.CSS)
	setIf(keyTemplate, e.Template)
	if e.Alternates != nil {
		out[keyAlternates] = append([]string{}, e.Alternates...)
	}
	if len(e.Defaults) > 0 {
		out[keyDefaults] = cloneAny(e.Defaults)
	}
	return out
}

// FromFields builds an entry from a decoded definition object. Numeric
// attribute values (e.g. "aria-colindex": 2) become their decimal string.
func FromFields(fields map[string]any) Entry {
	var e Entry
	for k, v := range fields {
		switch k {
		case keyTag:
			// A tag that is not a valid name test is kept but not declared.
			if tag := stringOf(v); tag == "" || selector.IsTagName(strings.TrimSpace(tag)) {
				e.Tag = tag
			} else {
				if e.Extra == nil {
					e.Extra = make(map[string]any)
				}
				e.Extra[k] = v
			}
		case keyText:
			e.Text = stringOf(v)
		case keyLabel:
			e.Label = stringOf(v)
		case keyXPath:
			e.XPath = stringOf(v)
		case keyCSS:
			e.CSS = stringOf(v)
		case keyTemplate:
			e.Template = stringOf(v)
		case keyAlternates:
			e.Alternates = stringList(v)
		case keyDefaults:
			if m, ok := v.(map[string]any); ok {
				e.Defaults = cloneAny(m)
			}
		default:
			switch tv := v.(type) {
			case string:
				if e.Attributes == nil {
					e.Attributes = make(map[string]string)
				}
				e.Attributes[k] = tv
			case float64:
				if e.Attributes == nil {
					e.Attributes = make(map[string]string)
				}
				e.Attributes[k] = strconv.FormatFloat(tv, 'f', -1, 64)
			case nil:
				// null means "not declared".
			default:
				if e.Extra == nil {
					e.Extra = make(map[string]any)
				}
				e.Extra[k] = v
			}
		}
	}
	return e
}

func stringOf(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	}
	return ""
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s, isStr := v.(string); isStr && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := stringOf(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
