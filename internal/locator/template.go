// internal/locator/template.go
package locator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

var (
	// ErrNoTemplate is returned when rendering an entry without xpath_template.
	ErrNoTemplate = errors.New("entry has no xpath_template")
	// ErrUnknownMacro is returned for a {placeholder} the renderer does not know.
	ErrUnknownMacro = errors.New("unknown template macro")
)

var macroPattern = regexp.MustCompile(`\{\{|\}\}|\{([a-z_]+)\}`)

// alwaysTrue stands in for an empty macro so templates like
// //{tag}[{class_pred}] stay valid XPath.
const alwaysTrue = selector.Raw("1=1")

// RenderTemplate fills an entry's xpath_template. params are merged over the
// entry's defaults and understand:
//
//	tag, class   fallbacks when the entry does not declare them
//	text         text to match
//	match        exact (default), contains or startswith
//	attrs        map of extra attribute equality constraints
//	index        1-based position; wraps the result as (xpath)[index]
//
// The template may reference {tag} {class_pred} {attrs_pred} {text_pred}
// {desc_text_pred} and {text}. Use {{ and }} for literal braces.
func RenderTemplate(e Entry, params map[string]any) (string, error) {
	if e.Template == "" {
		return "", ErrNoTemplate
	}

	p := make(map[string]any, len(e.Defaults)+len(params))
	for k, v := range e.Defaults {
		p[k] = v
	}
	for k, v := range params {
		p[k] = v
	}

	tag := strings.TrimSpace(firstNonEmpty(e.Tag, stringOf(p["tag"]), "*"))
	class := firstNonEmpty(e.Attr("class"), stringOf(p["class"]))
	match := strings.ToLower(firstNonEmpty(stringOf(p["match"]), "exact"))
	text := stringOf(p["text"])

	attrs, err := attrsParam(p["attrs"])
	if err != nil {
		return "", err
	}

	macros := map[string]string{
		"tag":            tag,
		"class_pred":     classPredicate(class),
		"attrs_pred":     attrsPredicate(attrs),
		"text_pred":      textPredicate(text, match, "normalize-space(.)"),
		"desc_text_pred": textPredicate(text, match, "normalize-space()"),
		"text":           selector.Literal(text),
	}

	var unknown string
	filled := macroPattern.ReplaceAllStringFunc(e.Template, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		name := m[1 : len(m)-1]
		v, ok := macros[name]
		if !ok && unknown == "" {
			unknown = name
		}
		return v
	})
	if unknown != "" {
		return "", fmt.Errorf("%w: {%s}", ErrUnknownMacro, unknown)
	}
	filled = strings.TrimSpace(filled)

	index, err := indexParam(p["index"])
	if err != nil {
		return "", err
	}
	if index > 0 {
		filled = selector.Indexed(filled, index)
	}
	return filled, nil
}

func classPredicate(class string) string {
	var preds selector.And
	for _, tok := range strings.Fields(class) {
		preds = append(preds, selector.ClassToken{Token: tok})
	}
	if len(preds) == 0 {
		return selector.RenderPredicate(alwaysTrue)
	}
	return selector.RenderPredicate(preds)
}

func attrsPredicate(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var preds selector.And
	for _, k := range keys {
		// Classes go through class_pred.
		if k == "class" || attrs[k] == "" {
			continue
		}
		preds = append(preds, selector.AttrEquals{Name: k, Value: attrs[k]})
	}
	if len(preds) == 0 {
		return selector.RenderPredicate(alwaysTrue)
	}
	return selector.RenderPredicate(preds)
}

func textPredicate(text, match, ctx string) string {
	if text == "" {
		return selector.RenderPredicate(alwaysTrue)
	}
	lit := selector.Literal(text)
	switch match {
	case "contains":
		return "contains(" + ctx + ", " + lit + ")"
	case "startswith":
		return "starts-with(" + ctx + ", " + lit + ")"
	default:
		return ctx + "=" + lit
	}
}

func attrsParam(v any) (map[string]string, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return tv, nil
	case map[string]any:
		out := make(map[string]string, len(tv))
		for k, val := range tv {
			if b, ok := val.(bool); ok && !b {
				continue
			}
			out[k] = stringOf(val)
		}
		return out, nil
	}
	return nil, fmt.Errorf("attrs must be an object, got %T", v)
}

func indexParam(v any) (int, error) {
	switch tv := v.(type) {
	case nil:
		return 0, nil
	case int:
		return tv, nil
	case float64:
		return int(tv), nil
	case string:
		if tv == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(tv)
		if err != nil {
			return 0, fmt.Errorf("invalid index %q: %w", tv, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("index must be a number, got %T", v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
