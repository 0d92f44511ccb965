// internal/browser/static/axis.go
package static

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// followingStep matches an expression ending in a positional following step,
// e.g. //label[normalize-space()='E-mail']/following::input[1].
var followingStep = regexp.MustCompile(`^(.+)/following::([A-Za-z_][\w.-]*|\*)\[([1-9][0-9]*)\]$`)

// queryXPath evaluates expr against root. htmlquery restarts the position
// counter of the following axis in every sibling subtree, so a trailing
// following::tag[n] step is evaluated here, once per anchor node.
func queryXPath(root *html.Node, expr string) ([]*html.Node, error) {
	if m := followingStep.FindStringSubmatch(strings.TrimSpace(expr)); m != nil {
		if anchors, err := htmlquery.QueryAll(root, m[1]); err == nil {
			n, _ := strconv.Atoi(m[3])
			return nthFollowing(root, anchors, strings.ToLower(m[2]), n), nil
		}
	}
	return htmlquery.QueryAll(root, expr)
}

// nthFollowing returns, in document order and without duplicates, the n-th
// element named tag on the following axis of each anchor.
func nthFollowing(root *html.Node, anchors []*html.Node, tag string, n int) []*html.Node {
	picked := make(map[*html.Node]bool)
	for _, a := range anchors {
		if a.Type != html.ElementNode {
			continue
		}
		seen := 0
		following(a, func(cur *html.Node) bool {
			if cur.Type != html.ElementNode || (tag != "*" && strings.ToLower(cur.Data) != tag) {
				return true
			}
			seen++
			if seen == n {
				picked[cur] = true
				return false
			}
			return true
		})
	}
	if len(picked) == 0 {
		return nil
	}

	out := make([]*html.Node, 0, len(picked))
	preorder(root, func(cur *html.Node) bool {
		if picked[cur] {
			out = append(out, cur)
		}
		return len(out) < len(picked)
	})
	return out
}

// following visits the nodes after n in document order, skipping n's own
// descendants, until visit returns false.
func following(n *html.Node, visit func(*html.Node) bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		for sib := cur.NextSibling; sib != nil; sib = sib.NextSibling {
			if !preorder(sib, visit) {
				return
			}
		}
	}
}

func preorder(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !preorder(c, visit) {
			return false
		}
	}
	return true
}
