// CLAUDE:SUMMARY Anchor extraction — redundant identifying signals captured alongside every generated selector.
package selector

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
)

const (
	maxAnchorText    = 100
	maxAnchorClasses = 3
)

// Anchors are identifying signals captured independently of the
// locator string. They are used only for future re-matching and
// healing; the current apply cycle never depends on them.
type Anchors struct {
	ID        string        `json:"id,omitempty"`
	Role      string        `json:"role,omitempty"`
	AriaLabel string        `json:"ariaLabel,omitempty"`
	TestID    string        `json:"testId,omitempty"`
	Text      string        `json:"text,omitempty"`
	Classes   []string      `json:"classes,omitempty"`
	Position  *dom.Position `json:"position,omitempty"`
}

// extractAnchors always runs against the original target, regardless of
// which generation strategy won.
func extractAnchors(n *html.Node) Anchors {
	a := Anchors{
		ID:        dom.GetAttr(n, "id"),
		Role:      dom.GetAttr(n, "role"),
		AriaLabel: dom.GetAttr(n, "aria-label"),
		Classes:   StableClasses(dom.Classes(n), maxAnchorClasses),
	}
	for _, attr := range testIDAttrs {
		if v := dom.GetAttr(n, attr); v != "" {
			a.TestID = v
			break
		}
	}
	if text := dom.Text(n); text != "" {
		if len(text) > maxAnchorText {
			text = text[:maxAnchorText]
		}
		a.Text = text
	}
	pos := dom.PositionOf(n)
	a.Position = &pos
	return a
}
