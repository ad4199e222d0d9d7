// CLAUDE:SUMMARY Selector dialect — parse, match, and ordered deduplicated query over x/net/html trees.
package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Selector is a parsed selector: comma-separated groups, each group a
// chain of simple parts joined by the descendant combinator.
type Selector struct {
	raw    string
	groups [][]simplePart
}

// String returns the source text the selector was parsed from.
func (s *Selector) String() string { return s.raw }

type simplePart struct {
	tag       string
	id        string
	classes   []string
	attrKey   string
	attrVal   string
	hasAttr   bool
	nthOfType int // 0 = unconstrained
}

// Parse compiles a selector string. Unlike a lenient matcher, Parse
// rejects malformed input so callers can distinguish "invalid pattern"
// from "no match".
func Parse(raw string) (*Selector, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("selector: empty pattern")
	}

	sel := &Selector{raw: raw}
	for _, group := range strings.Split(trimmed, ",") {
		fields := strings.Fields(group)
		if len(fields) == 0 {
			return nil, fmt.Errorf("selector: empty group in %q", raw)
		}
		var parts []simplePart
		for _, f := range fields {
			p, err := parsePart(f)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		sel.groups = append(sel.groups, parts)
	}
	return sel, nil
}

// parsePart parses one simple selector like "div.a.b#x[role=main]:nth-of-type(2)".
func parsePart(src string) (simplePart, error) {
	var p simplePart
	s := src

	// :nth-of-type(n) suffix.
	if idx := strings.Index(s, ":nth-of-type("); idx >= 0 {
		rest := s[idx+len(":nth-of-type("):]
		close := strings.IndexByte(rest, ')')
		if close < 0 || close != len(rest)-1 {
			return p, fmt.Errorf("selector: unterminated :nth-of-type in %q", src)
		}
		n, err := strconv.Atoi(rest[:close])
		if err != nil || n < 1 {
			return p, fmt.Errorf("selector: bad :nth-of-type argument in %q", src)
		}
		p.nthOfType = n
		s = s[:idx]
	} else if strings.ContainsRune(s, ':') {
		return p, fmt.Errorf("selector: unsupported pseudo-class in %q", src)
	}

	// [attr] / [attr=val].
	if idx := strings.IndexByte(s, '['); idx >= 0 {
		if !strings.HasSuffix(s, "]") {
			return p, fmt.Errorf("selector: unterminated attribute in %q", src)
		}
		attr := s[idx+1 : len(s)-1]
		s = s[:idx]
		if attr == "" {
			return p, fmt.Errorf("selector: empty attribute in %q", src)
		}
		if eq := strings.IndexByte(attr, '='); eq >= 0 {
			p.attrKey = attr[:eq]
			p.attrVal = strings.Trim(attr[eq+1:], `"'`)
		} else {
			p.attrKey = attr
		}
		if p.attrKey == "" {
			return p, fmt.Errorf("selector: empty attribute name in %q", src)
		}
		p.hasAttr = true
	}
	if strings.ContainsAny(s, "[]") {
		return p, fmt.Errorf("selector: stray bracket in %q", src)
	}

	// #id.
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		rest := s[idx+1:]
		// The id may be followed by class tokens.
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			p.id = rest[:dot]
			s = s[:idx] + rest[dot:]
		} else {
			p.id = rest
			s = s[:idx]
		}
		if p.id == "" {
			return p, fmt.Errorf("selector: empty id in %q", src)
		}
	}

	// .class tokens.
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		for _, c := range strings.Split(s[idx+1:], ".") {
			if c == "" {
				return p, fmt.Errorf("selector: empty class token in %q", src)
			}
			p.classes = append(p.classes, c)
		}
		s = s[:idx]
	}

	p.tag = strings.ToLower(s)
	if p.tag == "" && p.id == "" && len(p.classes) == 0 && !p.hasAttr {
		return p, fmt.Errorf("selector: empty part in %q", src)
	}
	if p.nthOfType > 0 && p.tag == "" {
		return p, fmt.Errorf("selector: :nth-of-type requires a tag in %q", src)
	}
	return p, nil
}

func (p *simplePart) matches(n *html.Node) bool {
	if !IsElement(n) {
		return false
	}
	if p.tag != "" && p.tag != "*" && Tag(n) != p.tag {
		return false
	}
	if p.id != "" && GetAttr(n, "id") != p.id {
		return false
	}
	for _, c := range p.classes {
		if !HasClass(n, c) {
			return false
		}
	}
	if p.hasAttr {
		if p.attrVal != "" {
			if GetAttr(n, p.attrKey) != p.attrVal {
				return false
			}
		} else if !HasAttr(n, p.attrKey) {
			return false
		}
	}
	if p.nthOfType > 0 && NthOfType(n) != p.nthOfType {
		return false
	}
	return true
}

// matchesChain checks the final part against n, then walks ancestors
// right-to-left for the remaining parts. Checking from the target up
// (instead of fanning out from every ancestor match) yields each node
// at most once, so Query counts are exact.
func matchesChain(parts []simplePart, n *html.Node) bool {
	last := len(parts) - 1
	if !parts[last].matches(n) {
		return false
	}
	anc := n.Parent
	for i := last - 1; i >= 0; i-- {
		for {
			if anc == nil {
				return false
			}
			if parts[i].matches(anc) {
				anc = anc.Parent
				break
			}
			anc = anc.Parent
		}
	}
	return true
}

// Match reports whether a single node matches the selector.
func (s *Selector) Match(n *html.Node) bool {
	for _, parts := range s.groups {
		if matchesChain(parts, n) {
			return true
		}
	}
	return false
}

// QueryAll walks the subtree under root in document order and returns
// every matching element exactly once.
func (s *Selector) QueryAll(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsElement(n) && s.Match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Query parses and evaluates in one step.
func Query(root *html.Node, raw string) ([]*html.Node, error) {
	sel, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return sel.QueryAll(root), nil
}
