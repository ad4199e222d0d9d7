// CLAUDE:SUMMARY Selector generation cascade — eight strategies from unique id down to marker fallback.
// Package selector turns an arbitrary element into a durable locator:
// a selector string in the dom dialect, a confidence score, and a set
// of redundant anchors for future re-matching.
//
// Generation is a pure function of the tree: repeated calls against an
// unchanged document return the identical selector and confidence. The
// cascade tries strategies in confidence order and the first validated
// result wins, where validated means the selector parses and resolves
// to between 1 and 20 matches. Anything broader is rejected in favour
// of the next tier.
package selector

import (
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
)

// Validation bound: an element-selecting strategy that matches more
// than this is too broad to trust.
const maxMatches = 20

// MarkerAttr is reserved for the ultimate-fallback strategy. It is the
// only case where generation writes to the tree.
const MarkerAttr = "data-veil-target"

// Result is the output of Generate.
type Result struct {
	Selector    string  `json:"selector"`
	Confidence  float64 `json:"confidence"`
	Anchors     Anchors `json:"anchors"`
	Description string  `json:"description"`
}

var testIDAttrs = []string{"data-testid", "data-test-id", "data-test", "data-qa", "data-cy"}

// stableAttrs is the priority-ordered attribute list for the
// stable-attribute strategy. id is handled by its own tier.
var stableAttrs = []string{
	"data-testid", "data-test-id", "data-test", "data-qa", "data-cy",
	"name", "aria-label", "aria-labelledby", "role",
}

// Generate produces a durable locator for the node. It never fails for
// an element node: the marker-attribute fallback always yields a
// result, at confidence 0.1.
func Generate(doc *dom.Document, n *html.Node) (Result, error) {
	if !dom.IsElement(n) {
		return Result{}, fmt.Errorf("selector: target is not an element")
	}
	root := doc.Root()
	anchors := extractAnchors(n)

	if sel, conf, desc, ok := byUniqueID(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	if sel, conf, desc, ok := byStableAttr(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	if sel, conf, desc, ok := byLandmark(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	if sel, conf, desc, ok := byStableClass(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	if sel, conf, desc, ok := byStableAncestor(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	if sel, conf, desc, ok := bySemanticPath(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	if sel, conf, desc, ok := byPosition(root, n); ok {
		return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
	}
	sel, conf, desc := byMarker(n)
	return Result{Selector: sel, Confidence: conf, Anchors: anchors, Description: desc}, nil
}

// validate applies the post-strategy predicate: the selector must parse
// and must resolve to at least one and at most maxMatches nodes.
func validate(root *html.Node, raw string) (int, bool) {
	nodes, err := dom.Query(root, raw)
	if err != nil {
		return 0, false
	}
	if len(nodes) == 0 || len(nodes) > maxMatches {
		return len(nodes), false
	}
	return len(nodes), true
}

// selectorSafe guards attribute values against characters the dialect
// cannot express (whitespace splits descendant parts).
func selectorSafe(v string) bool {
	return v != "" && !strings.ContainsAny(v, " \t\n\"'[],:")
}

// plainIdent reports whether a value can appear after # or . directly.
func plainIdent(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		ok := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}

// --- strategy 1: unique identifier ---

func byUniqueID(root, n *html.Node) (string, float64, string, bool) {
	id := dom.GetAttr(n, "id")
	if id == "" || IsVolatile(id) {
		return "", 0, "", false
	}
	var sel string
	switch {
	case plainIdent(id):
		sel = "#" + id
	case selectorSafe(id):
		sel = fmt.Sprintf("[id=%s]", id)
	default:
		return "", 0, "", false
	}
	if _, ok := validate(root, sel); !ok {
		return "", 0, "", false
	}
	return sel, 0.95, fmt.Sprintf("%s with id %q", dom.Tag(n), id), true
}

// --- strategy 2: stable attribute ---

func byStableAttr(root, n *html.Node) (string, float64, string, bool) {
	for _, attr := range stableAttrs {
		val := dom.GetAttr(n, attr)
		if val == "" || !selectorSafe(val) || IsVolatile(val) {
			continue
		}
		bare := fmt.Sprintf("[%s=%s]", attr, val)
		count, ok := validate(root, bare)
		if ok && count == 1 {
			return bare, 0.9, fmt.Sprintf("%s attribute %q", attr, val), true
		}
		if ok && count <= 3 {
			// Ambiguous: disambiguate with the tag name.
			tagged := dom.Tag(n) + bare
			if c, ok := validate(root, tagged); ok && c == 1 {
				return tagged, 0.85, fmt.Sprintf("%s with %s %q", dom.Tag(n), attr, val), true
			}
		}
	}
	return "", 0, "", false
}

// --- strategy 3: landmark role ---

func byLandmark(root, n *html.Node) (string, float64, string, bool) {
	role := dom.LandmarkRole(n)
	if role == "" {
		return "", 0, "", false
	}
	bare := landmarkSelector(n, role)
	count, ok := validate(root, bare)
	if ok && count == 1 {
		return bare, 0.8, fmt.Sprintf("%s landmark", role), true
	}
	if ok && count <= 3 {
		// Refine with the nearest ancestor that has a usable id.
		for anc := n.Parent; anc != nil; anc = anc.Parent {
			if !dom.IsElement(anc) {
				continue
			}
			id := dom.GetAttr(anc, "id")
			if id == "" || IsVolatile(id) || !plainIdent(id) {
				continue
			}
			refined := "#" + id + " " + bare
			if c, ok := validate(root, refined); ok && c == 1 {
				return refined, 0.75, fmt.Sprintf("%s landmark under #%s", role, id), true
			}
			break
		}
	}
	return "", 0, "", false
}

// landmarkSelector prefers the bare element tag when it implies the
// role; otherwise targets the explicit role attribute.
func landmarkSelector(n *html.Node, role string) string {
	if dom.GetAttr(n, "role") == role {
		return fmt.Sprintf("[role=%s]", role)
	}
	return dom.Tag(n)
}

// --- strategy 4: stable class token ---

func byStableClass(root, n *html.Node) (string, float64, string, bool) {
	classes := StableClasses(dom.Classes(n), 4)
	var usable []string
	for _, c := range classes {
		if plainIdent(c) {
			usable = append(usable, c)
		}
	}
	for _, c := range usable {
		sel := "." + c
		if _, ok := validate(root, sel); ok {
			return sel, 0.7, fmt.Sprintf("class %q", c), true
		}
	}
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			sel := "." + usable[i] + "." + usable[j]
			if _, ok := validate(root, sel); ok {
				return sel, 0.65, fmt.Sprintf("classes %q and %q", usable[i], usable[j]), true
			}
		}
	}
	return "", 0, "", false
}

// --- strategy 5: relative to stable ancestor ---

const (
	maxAncestorWalk  = 4
	maxRelativeSteps = 3
	maxSelectorLen   = 120
)

func byStableAncestor(root, n *html.Node) (string, float64, string, bool) {
	depth := 0
	for anc := n.Parent; anc != nil && depth < maxAncestorWalk; anc = anc.Parent {
		if !dom.IsElement(anc) {
			break
		}
		depth++
		ancSel, ancConf, ok := resolveAncestor(root, anc)
		if !ok || ancConf < 0.7 {
			continue
		}
		path, ok := descendantPath(anc, n)
		if !ok {
			continue
		}
		sel := ancSel + " " + path
		if len(sel) > maxSelectorLen {
			continue
		}
		if count, ok := validate(root, sel); ok && count == 1 {
			conf := ancConf - 0.2
			if conf < 0.5 {
				conf = 0.5
			}
			return sel, conf, fmt.Sprintf("%s inside %s", dom.Tag(n), ancSel), true
		}
	}
	return "", 0, "", false
}

// resolveAncestor runs only the top three strategies against an
// ancestor node.
func resolveAncestor(root, anc *html.Node) (string, float64, bool) {
	if sel, conf, _, ok := byUniqueID(root, anc); ok {
		return sel, conf, true
	}
	if sel, conf, _, ok := byStableAttr(root, anc); ok {
		return sel, conf, true
	}
	if sel, conf, _, ok := byLandmark(root, anc); ok {
		return sel, conf, true
	}
	return "", 0, false
}

// descendantPath builds a short positional path from ancestor to
// target, at most maxRelativeSteps parts.
func descendantPath(anc, target *html.Node) (string, bool) {
	var steps []string
	for cur := target; cur != anc; cur = cur.Parent {
		if cur == nil || !dom.IsElement(cur) {
			return "", false
		}
		steps = append(steps, positionalStep(cur))
		if len(steps) > maxRelativeSteps {
			return "", false
		}
	}
	if len(steps) == 0 {
		return "", false
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, " "), true
}

func positionalStep(n *html.Node) string {
	tag := dom.Tag(n)
	if nextSameTag(n) || dom.NthOfType(n) > 1 {
		return fmt.Sprintf("%s:nth-of-type(%d)", tag, dom.NthOfType(n))
	}
	return tag
}

func nextSameTag(n *html.Node) bool {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if dom.IsElement(s) && s.Data == n.Data {
			return true
		}
	}
	return false
}

// --- strategy 6: semantic path ---

const maxSemanticSteps = 4

func bySemanticPath(root, n *html.Node) (string, float64, string, bool) {
	var steps []string
	for cur := n; cur != nil && dom.IsElement(cur) && len(steps) < maxSemanticSteps; cur = cur.Parent {
		step, ok := semanticStep(cur)
		if !ok {
			break
		}
		steps = append(steps, step)
	}
	if len(steps) < 2 {
		return "", 0, "", false
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	sel := strings.Join(steps, " ")
	if count, ok := validate(root, sel); ok && count == 1 {
		return sel, 0.6, "semantic path", true
	}
	return "", 0, "", false
}

// semanticStep expresses one node by its strongest semantic signal:
// explicit role, stable class, or landmark tag.
func semanticStep(n *html.Node) (string, bool) {
	if role := dom.GetAttr(n, "role"); role != "" && selectorSafe(role) {
		return fmt.Sprintf("[role=%s]", role), true
	}
	if classes := StableClasses(dom.Classes(n), 1); len(classes) == 1 && plainIdent(classes[0]) {
		return dom.Tag(n) + "." + classes[0], true
	}
	if dom.LandmarkRole(n) != "" {
		return dom.Tag(n), true
	}
	return "", false
}

// --- strategy 7: positional fallback ---

const maxPositionalAncestors = 3

func byPosition(root, n *html.Node) (string, float64, string, bool) {
	steps := []string{positionalStep(n)}
	for anc := n.Parent; anc != nil && dom.IsElement(anc) && len(steps) <= maxPositionalAncestors; anc = anc.Parent {
		steps = append([]string{positionalStep(anc)}, steps...)
	}
	sel := strings.Join(steps, " ")
	if count, ok := validate(root, sel); ok && count == 1 {
		return sel, 0.3, "positional path", true
	}
	return "", 0, "", false
}

// --- strategy 8: ultimate fallback ---

// byMarker tags the node with the reserved marker attribute. Not
// guaranteed unique across documents; last resort only. The marker
// value is derived from the node's absolute path, so regeneration on an
// unchanged tree is deterministic even before the attribute lands.
func byMarker(n *html.Node) (string, float64, string) {
	v := dom.GetAttr(n, MarkerAttr)
	if v == "" {
		h := fnv.New32a()
		h.Write([]byte(dom.AbsolutePath(n)))
		v = fmt.Sprintf("v%x", h.Sum32())
		dom.SetAttr(n, MarkerAttr, v)
	}
	sel := fmt.Sprintf("%s[%s=%s]", dom.Tag(n), MarkerAttr, v)
	return sel, 0.1, "marker attribute fallback"
}
