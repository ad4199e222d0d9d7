// CLAUDE:SUMMARY Document wrapper — parse, origin, query, render, subtree serialisation.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Document wraps one parsed HTML tree together with its origin. All
// node handles returned by Query are valid only for the lifetime of
// this Document; a navigation or document reset means a new Document.
type Document struct {
	root   *html.Node
	origin string
}

// ParseDocument parses HTML from r. origin is the scheme://host[:port]
// the page was loaded from; it keys rule persistence.
func ParseDocument(r io.Reader, origin string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{root: root, origin: origin}, nil
}

// ParseDocumentString parses HTML from a string.
func ParseDocumentString(src, origin string) (*Document, error) {
	return ParseDocument(strings.NewReader(src), origin)
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Origin returns the origin the document was loaded from.
func (d *Document) Origin() string { return d.origin }

// Query evaluates a selector against the whole tree.
func (d *Document) Query(raw string) ([]*html.Node, error) {
	return Query(d.root, raw)
}

// QuerySelector returns the first match in document order, or nil.
func (d *Document) QuerySelector(raw string) (*html.Node, error) {
	nodes, err := Query(d.root, raw)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// Render serialises the whole document back to HTML.
func (d *Document) Render() (string, error) {
	var b bytes.Buffer
	if err := html.Render(&b, d.root); err != nil {
		return "", fmt.Errorf("dom: render: %w", err)
	}
	return b.String(), nil
}

// RenderNode serialises a single subtree.
func RenderNode(n *html.Node) string {
	var b bytes.Buffer
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// AppendChildHTML parses a fragment in the context of parent and
// appends the resulting nodes. Returns the appended top-level nodes.
func AppendChildHTML(parent *html.Node, fragment string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nodes, nil
}
