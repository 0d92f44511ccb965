// internal/selector/ast.go
package selector

import (
	"strconv"
	"strings"
)

// Predicate is a boolean XPath expression that can appear inside a step's
// square brackets. Every string literal is rendered through Literal, so no
// predicate can produce an unbalanced quote.
type Predicate interface {
	render(b *strings.Builder)
}

// Literal renders s as a safe XPath string literal. Single quotes are preferred,
// double quotes are used when s contains a single quote, and concat() is used
// when s contains both.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// AttrEquals renders @name='value'.
type AttrEquals struct {
	Name  string
	Value string
}

func (p AttrEquals) render(b *strings.Builder) {
	b.WriteString("@" + p.Name + "=" + Literal(p.Value))
}

// AttrContains renders contains(@name, 'value'). With Normalize set the
// attribute is wrapped in normalize-space().
type AttrContains struct {
	Name      string
	Value     string
	Normalize bool
}

func (p AttrContains) render(b *strings.Builder) {
	b.WriteString("contains(")
	if p.Normalize {
		b.WriteString("normalize-space(@" + p.Name + ")")
	} else {
		b.WriteString("@" + p.Name)
	}
	b.WriteString(", " + Literal(p.Value) + ")")
}

// AttrStartsWith renders starts-with(@name, 'value').
type AttrStartsWith struct {
	Name  string
	Value string
}

func (p AttrStartsWith) render(b *strings.Builder) {
	b.WriteString("starts-with(@" + p.Name + ", " + Literal(p.Value) + ")")
}

// TextEquals renders normalize-space()='value'.
type TextEquals struct {
	Value string
}

func (p TextEquals) render(b *strings.Builder) {
	b.WriteString("normalize-space()=" + Literal(p.Value))
}

// TextContains renders contains(normalize-space(), 'value').
type TextContains struct {
	Value string
}

func (p TextContains) render(b *strings.Builder) {
	b.WriteString("contains(normalize-space(), " + Literal(p.Value) + ")")
}

// ClassToken matches a whole class token rather than a substring of the class
// attribute.
type ClassToken struct {
	Token string
}

func (p ClassToken) render(b *strings.Builder) {
	b.WriteString("contains(concat(' ', normalize-space(@class), ' '), " + Literal(" "+p.Token+" ") + ")")
}

// Position renders a positional predicate such as [1].
type Position int

func (p Position) render(b *strings.Builder) {
	b.WriteString(strconv.Itoa(int(p)))
}

// Raw is an already rendered predicate. It is used for template macros and for
// the 1=1 placeholder, never for user supplied values.
type Raw string

func (p Raw) render(b *strings.Builder) {
	b.WriteString(string(p))
}

// And joins predicates with "and". Empty members are dropped.
type And []Predicate

func (p And) render(b *strings.Builder) {
	first := true
	for _, pred := range p {
		if pred == nil {
			continue
		}
		if !first {
			b.WriteString(" and ")
		}
		pred.render(b)
		first = false
	}
}

// RenderPredicate renders a single predicate without brackets.
func RenderPredicate(p Predicate) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	p.render(&b)
	return b.String()
}

// Axis selects how a step relates to the previous one.
type Axis int

const (
	// Descendant renders as // (descendant-or-self from the context node).
	Descendant Axis = iota
	// Following renders as /following::.
	Following
	// Child renders as /.
	Child
)

// Step is a single location step: axis, tag test and predicates.
type Step struct {
	Axis       Axis
	Tag        string
	Predicates []Predicate
}

// Path is a sequence of steps evaluated from the document root.
type Path []Step

// String renders the path as an absolute XPath expression.
func (p Path) String() string {
	var b strings.Builder
	for _, s := range p {
		switch s.Axis {
		case Following:
			b.WriteString("/following::")
		case Child:
			b.WriteString("/")
		default:
			b.WriteString("//")
		}
		tag := s.Tag
		if tag == "" {
			tag = "*"
		}
		b.WriteString(tag)
		for _, pred := range s.Predicates {
			if pred == nil {
				continue
			}
			b.WriteByte('[')
			pred.render(&b)
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Find is a shorthand for a single-step descendant path: //tag[preds...].
func Find(tag string, preds ...Predicate) Path {
	return Path{{Axis: Descendant, Tag: tag, Predicates: preds}}
}

// Indexed wraps a complete expression in a positional predicate so that it
// selects exactly the n-th match in document order: (expr)[n].
func Indexed(expr string, n int) string {
	return "(" + expr + ")[" + strconv.Itoa(n) + "]"
}
