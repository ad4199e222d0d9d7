// CLAUDE:SUMMARY Node-level helpers — attributes, text collection, position descriptors, interactive/critical checks.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GetAttr returns the value of an attribute on a node, or "".
func GetAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the node carries the attribute at all.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute on a node.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute from a node. No-op if absent.
func RemoveAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Classes returns the class tokens of a node.
func Classes(n *html.Node) []string {
	return strings.Fields(GetAttr(n, "class"))
}

// HasClass reports whether the node's class list contains the token.
func HasClass(n *html.Node, token string) bool {
	for _, c := range Classes(n) {
		if c == token {
			return true
		}
	}
	return false
}

// IsElement reports whether the node is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Tag returns the lower-case tag name of an element node, or "".
func Tag(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Text collects the concatenated text content of a subtree, with
// whitespace runs collapsed to single spaces.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Depth counts element ancestors between the node and the document root.
func Depth(n *html.Node) int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		if IsElement(p) {
			d++
		}
	}
	return d
}

// NthChild returns the 1-based ordinal of the node among its element
// siblings (all tags).
func NthChild(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if IsElement(s) {
			idx++
		}
	}
	return idx
}

// NthOfType returns the 1-based ordinal of the node among element
// siblings sharing its tag name.
func NthOfType(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if IsElement(s) && s.Data == n.Data {
			idx++
		}
	}
	return idx
}

// Position describes where a node sits in the tree. Captured as an
// anchor signal for future re-matching; never used for correctness of
// the current apply cycle.
type Position struct {
	TagName  string `json:"tagName"`
	NthChild int    `json:"nthChild"`
	Depth    int    `json:"depth"`
}

// PositionOf builds a Position descriptor for an element node.
func PositionOf(n *html.Node) Position {
	return Position{TagName: Tag(n), NthChild: NthChild(n), Depth: Depth(n)}
}

// criticalTags are never valid suppression targets regardless of what
// any caller requests.
var criticalTags = map[atom.Atom]bool{
	atom.Html:   true,
	atom.Head:   true,
	atom.Body:   true,
	atom.Script: true,
	atom.Style:  true,
	atom.Meta:   true,
	atom.Link:   true,
	atom.Title:  true,
	atom.Base:   true,
}

// IsCritical reports whether the node is the document root, one of its
// immediate structural ancestors, or a resource/metadata node.
func IsCritical(n *html.Node) bool {
	if n == nil || n.Type == html.DocumentNode {
		return true
	}
	if !IsElement(n) {
		return true
	}
	return criticalTags[n.DataAtom]
}

var interactiveTags = map[atom.Atom]bool{
	atom.A:        true,
	atom.Button:   true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Textarea: true,
	atom.Option:   true,
	atom.Label:    true,
	atom.Summary:  true,
}

var interactiveRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true,
	"menuitem": true, "tab": true, "switch": true, "slider": true,
	"combobox": true, "listbox": true, "textbox": true,
}

// IsInteractive flags controls, links, and nodes carrying an interactive
// role, handler attribute, or tab stop. Advisory only — callers are
// expected to confirm before suppressing such nodes, but nothing in the
// engine enforces it.
func IsInteractive(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	if interactiveTags[n.DataAtom] {
		return true
	}
	if interactiveRoles[GetAttr(n, "role")] {
		return true
	}
	if HasAttr(n, "onclick") || HasAttr(n, "tabindex") {
		return true
	}
	return false
}

// Contains reports whether ancestor is n itself or one of its ancestors.
func Contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
