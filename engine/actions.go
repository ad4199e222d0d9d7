// CLAUDE:SUMMARY Action transforms — hide, blank, replace-with-placeholder, and their exact reversal.
package engine

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domveil/dom"
)

// Marker attributes carried by decorated nodes. A node holds at most
// one marker at a time; a marked node is excluded from becoming the
// target of any other rule until restored.
const (
	markAttr         = "data-veil"      // hidden | blanked | replaced
	markRuleAttr     = "data-veil-rule" // owning rule id
	markTimeAttr     = "data-veil-ts"   // epoch millis at decoration
	placeholderAttr  = "data-veil-placeholder"
	placeholderGlyph = "◌" // dotted circle
)

// Mark states stored in markAttr.
const (
	StateHidden   = "hidden"
	StateBlanked  = "blanked"
	StateReplaced = "replaced"
)

// trackedProps returns the style properties a transform forces, which
// is exactly the set snapshotted before apply and stripped on restore.
func trackedProps(action Action, s Strategy) []string {
	switch action {
	case ActionHide:
		if s.PreserveLayout {
			return []string{"visibility", "pointer-events"}
		}
		return []string{"display"}
	case ActionBlank:
		props := []string{
			"color", "background", "background-image", "border-color",
			"box-shadow", "text-shadow", "pointer-events",
		}
		if !s.PreserveLayout {
			props = append(props, "opacity")
		}
		return props
	case ActionReplace:
		return []string{"font-size", "line-height", "overflow"}
	}
	return nil
}

// applyHide suppresses the node. PreserveLayout keeps the layout box
// (visibility-hidden, pointer interaction off); otherwise the space
// collapses with display-none.
func applyHide(n *html.Node, s Strategy) {
	if s.PreserveLayout {
		dom.ForceStyle(n, map[string]string{
			"visibility":     "hidden",
			"pointer-events": "none",
		})
		return
	}
	dom.ForceStyle(n, map[string]string{"display": "none"})
}

// applyBlank neutralises all visible paint without removing the node's
// box, and disables pointer interaction.
func applyBlank(n *html.Node, s Strategy) {
	props := map[string]string{
		"color":            "transparent",
		"background":       "transparent",
		"background-image": "none",
		"border-color":     "transparent",
		"box-shadow":       "none",
		"text-shadow":      "none",
		"pointer-events":   "none",
	}
	if !s.PreserveLayout {
		props["opacity"] = "0"
	}
	dom.ForceStyle(n, props)
}

// noChildTags cannot host an isolated placeholder scope: void elements
// and form controls whose content model is not ordinary flow.
var noChildTags = map[atom.Atom]bool{
	atom.Input: true, atom.Textarea: true, atom.Select: true,
	atom.Img: true, atom.Br: true, atom.Hr: true, atom.Area: true,
	atom.Embed: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true, atom.Col: true, atom.Iframe: true,
	atom.Video: true, atom.Audio: true, atom.Canvas: true,
}

// canIsolate is the capability probe for the replace action. Absence
// of the capability is an ordinary branch, never an error.
func canIsolate(n *html.Node) bool {
	if !dom.IsElement(n) {
		return false
	}
	return !noChildTags[n.DataAtom]
}

// applyReplace collapses the original content (zero font metrics,
// clipped overflow) and attaches a small neutral placeholder carrying
// the rule's note text. Returns the state actually reached: replace
// degrades to hide when the node cannot host the placeholder scope.
func applyReplace(n *html.Node, r *Rule) string {
	if !canIsolate(n) {
		applyHide(n, r.Strategy)
		return StateHidden
	}

	dom.ForceStyle(n, map[string]string{
		"font-size":   "0",
		"line-height": "0",
		"overflow":    "hidden",
	})

	label := placeholderGlyph
	if r.Notes != "" {
		label += " " + r.Notes
	}
	ph := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: placeholderAttr, Val: r.ID},
			{Key: "style", Val: "font-size: 13px !important; line-height: 1.4 !important; color: #888 !important"},
		},
	}
	ph.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	n.AppendChild(ph)
	return StateReplaced
}

// restoreNode strips the marker, removes any placeholder the replace
// action inserted, and puts the tracked style properties back to the
// snapshotted values. Best-effort by design: only tracked properties
// are touched, never the rest of the style attribute.
func restoreNode(n *html.Node, r *Rule, snap dom.StyleSnapshot) {
	state := dom.GetAttr(n, markAttr)
	dom.RemoveAttr(n, markAttr)
	dom.RemoveAttr(n, markRuleAttr)
	dom.RemoveAttr(n, markTimeAttr)

	removePlaceholders(n)

	props := trackedProps(r.Action, r.Strategy)
	if r.Action == ActionReplace && state == StateHidden {
		// Replace degraded to hide on this node.
		props = trackedProps(ActionHide, r.Strategy)
	}
	dom.RestoreStyle(n, props, snap)
}

func removePlaceholders(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if dom.IsElement(c) && dom.HasAttr(c, placeholderAttr) {
			n.RemoveChild(c)
		}
		c = next
	}
}
