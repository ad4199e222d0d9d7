// Package dom implements the tree-query dialect and node utilities that
// the selector and rule engines operate on.
//
// The document model is *html.Node from golang.org/x/net/html. Node
// handles are plain pointers; identity is pointer identity for the
// lifetime of one Document. The selector dialect is a CSS subset:
//
//   - tag:            "article", "div"
//   - #id:            "#main-content"
//   - .class:         ".promo", ".a.b" (multiple tokens)
//   - tag.class:      "div.content"
//   - [attr]:         "div[data-testid]"
//   - [attr=val]:     "div[role=main]"
//   - :nth-of-type(n) "li:nth-of-type(3)"
//   - descendant:     parts separated by spaces
//   - groups:         comma-separated alternatives
//
// Query results are deduplicated and returned in document order, so
// match counts are exact — the broadness guards upstream depend on that.
package dom
