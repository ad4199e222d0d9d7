// CLAUDE:SUMMARY Detects HTML5 landmark elements and landmark roles in a parsed tree.
package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// landmarkTags maps landmark elements to their implicit ARIA roles.
var landmarkTags = map[atom.Atom]string{
	atom.Header: "banner",
	atom.Nav:    "navigation",
	atom.Main:   "main",
	atom.Aside:  "complementary",
	atom.Footer: "contentinfo",
}

var landmarkRoles = map[string]bool{
	"banner": true, "navigation": true, "main": true,
	"complementary": true, "contentinfo": true, "search": true,
	"region": true,
}

// LandmarkRole returns the landmark role of a node — explicit role
// attribute first, implicit element role second — or "" when the node
// is not a landmark.
func LandmarkRole(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	if r := GetAttr(n, "role"); r != "" && landmarkRoles[r] {
		return r
	}
	if r, ok := landmarkTags[n.DataAtom]; ok {
		return r
	}
	return ""
}

// Landmark is one structural landmark found in a document.
type Landmark struct {
	Tag   string `json:"tag"`
	Role  string `json:"role"`
	XPath string `json:"xpath"`
}

// FindLandmarks walks the tree and returns every landmark element.
func FindLandmarks(root *html.Node) []Landmark {
	var out []Landmark
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if role := LandmarkRole(n); role != "" {
			out = append(out, Landmark{Tag: Tag(n), Role: role, XPath: AbsolutePath(n)})
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
