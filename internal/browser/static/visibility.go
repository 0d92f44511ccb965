// internal/browser/static/visibility.go
package static

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// nonRendered elements never produce boxes, so nothing inside them is visible.
var nonRendered = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"title":    true,
	"meta":     true,
	"link":     true,
}

// isVisible approximates rendering without a layout engine: the node and all
// its ancestors must be rendered, not carry the hidden attribute, and not be
// hidden by an inline style. The nearest inline visibility declaration wins,
// as it would through inheritance.
func isVisible(n *html.Node) bool {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "input") &&
		strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return false
	}
	visibilityDecided := false
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if nonRendered[strings.ToLower(cur.Data)] {
			return false
		}
		if hasAttr(cur, "hidden") {
			return false
		}
		displayNone, visibility := inlineStyle(htmlquery.SelectAttr(cur, "style"))
		if displayNone {
			return false
		}
		if visibility != "" && !visibilityDecided {
			visibilityDecided = true
			if visibility == "hidden" || visibility == "collapse" {
				return false
			}
		}
	}
	return true
}

// inlineStyle extracts the display:none flag and the visibility value from a
// style attribute.
func inlineStyle(style string) (displayNone bool, visibility string) {
	if style == "" {
		return false, ""
	}
	for _, decl := range selector.ParseDeclarations(style) {
		switch decl.Property {
		case "display":
			displayNone = decl.Value == "none"
		case "visibility":
			visibility = decl.Value
		}
	}
	return displayNone, visibility
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}
