// CLAUDE:SUMMARY Absolute node paths (xpath-style) for diagnostics and mutation-record location.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// AbsolutePath computes an xpath-style location for a node, e.g.
// "/html/body/div[2]/p". Sibling indexes count same-tag elements and
// are omitted when the node is the only one of its tag.
func AbsolutePath(n *html.Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	for cur := n; cur != nil && IsElement(cur); cur = cur.Parent {
		tag := Tag(cur)
		idx := NthOfType(cur)
		only := idx == 1 && nextOfType(cur) == nil
		if only {
			parts = append(parts, tag)
		} else {
			parts = append(parts, fmt.Sprintf("%s[%d]", tag, idx))
		}
	}
	// Reverse: collected target-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

func nextOfType(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if IsElement(s) && s.Data == n.Data {
			return s
		}
	}
	return nil
}

// ResolvePath walks an AbsolutePath string back to a node, or nil if
// the tree has changed shape underneath it.
func ResolvePath(root *html.Node, path string) *html.Node {
	if path == "" || path == "/" {
		return nil
	}
	cur := root
	for _, step := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		tag := step
		idx := 1
		if br := strings.IndexByte(step, '['); br >= 0 {
			tag = step[:br]
			fmt.Sscanf(step[br:], "[%d]", &idx)
		}
		var next *html.Node
		seen := 0
		for c := firstElement(cur); c != nil; c = nextSiblingElement(c) {
			if Tag(c) == tag {
				seen++
				if seen == idx {
					next = c
					break
				}
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) {
			return c
		}
	}
	return nil
}

func nextSiblingElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if IsElement(s) {
			return s
		}
	}
	return nil
}
