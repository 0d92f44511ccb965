// internal/selector/classify.go
package selector

import (
	"regexp"
	"strings"
)

// Kind is the syntax family of a selector string.
type Kind int

const (
	// XPath selectors are evaluated with document.evaluate semantics.
	XPath Kind = iota
	// CSS selectors are evaluated with querySelectorAll semantics.
	CSS
)

func (k Kind) String() string {
	if k == CSS {
		return "css"
	}
	return "xpath"
}

// Query is a classified selector ready to be handed to a driver.
type Query struct {
	Kind Kind
	Expr string
}

func (q Query) String() string {
	return q.Kind.String() + "=" + q.Expr
}

var (
	wrappedIndex = regexp.MustCompile(`^\((.*)\)\[\d+\]$`)
	bareTag      = regexp.MustCompile(`^//(?:[\w-]+|\*)(?:\[\d+\])?$`)
	attrRef      = regexp.MustCompile(`@([a-zA-Z0-9\-:_]+)`)
	tagName      = regexp.MustCompile(`^(?:\*|[A-Za-z_][\w.-]*(?::[A-Za-z_][\w.-]*)?)$`)
)

// IsTagName reports whether tag can be used as an XPath name test: an element
// name, optionally prefixed, or the * wildcard.
func IsTagName(tag string) bool {
	return tagName.MatchString(tag)
}

// Parse classifies s as XPath or CSS. The explicit prefixes "xpath=" and
// "css=" take precedence; otherwise a selector is XPath when it starts with
// "/", "(" or ".//", or contains "@" or "contains(". Everything else is CSS.
func Parse(s string) Query {
	t := strings.TrimSpace(s)
	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "xpath="):
		return Query{Kind: XPath, Expr: strings.TrimSpace(t[len("xpath="):])}
	case strings.HasPrefix(lower, "css="):
		return Query{Kind: CSS, Expr: strings.TrimSpace(t[len("css="):])}
	}
	if IsXPath(t) {
		return Query{Kind: XPath, Expr: t}
	}
	return Query{Kind: CSS, Expr: t}
}

// IsXPath reports whether s would be classified as XPath by Parse.
func IsXPath(s string) bool {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(t), "xpath=") {
		return true
	}
	if strings.HasPrefix(t, "/") || strings.HasPrefix(t, "(") || strings.HasPrefix(t, ".//") {
		return true
	}
	return strings.Contains(t, "@") || strings.Contains(t, "contains(")
}

// IsWrappable reports whether a positional (expr)[n] wrapper can be applied to
// s. Only XPath location paths and parenthesized expressions qualify.
func IsWrappable(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "(")
}

// Unwrap strips any number of (expr)[n] positional wrappers.
func Unwrap(s string) string {
	t := strings.TrimSpace(s)
	for {
		m := wrappedIndex.FindStringSubmatch(t)
		if m == nil {
			return t
		}
		t = strings.TrimSpace(m[1])
	}
}

// IsGeneric reports whether an XPath selector is too weak to be worth
// persisting: a bare tag with an optional index (also when wrapped as
// (//tag)[n]), or an expression whose only attribute references are @class.
// CSS selectors are never generic.
func IsGeneric(s string) bool {
	if !IsXPath(s) {
		return false
	}
	inner := Unwrap(s)
	if bareTag.MatchString(inner) {
		return true
	}
	refs := attrRef.FindAllStringSubmatch(inner, -1)
	if len(refs) == 0 {
		return false
	}
	for _, r := range refs {
		if r[1] != "class" {
			return false
		}
	}
	return true
}
