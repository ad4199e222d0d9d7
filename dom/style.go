// CLAUDE:SUMMARY Inline style editing — ordered declaration list, forced properties, reversible snapshots.
package dom

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Style is an ordered inline style declaration list. Order is preserved
// on round-trip so unrelated author declarations survive untouched.
type Style struct {
	props []styleProp
}

type styleProp struct {
	name      string
	value     string
	important bool
}

// ParseStyle parses the value of a style attribute.
func ParseStyle(src string) *Style {
	st := &Style{}
	for _, decl := range strings.Split(src, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		colon := strings.IndexByte(decl, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(strings.ToLower(decl[:colon]))
		value := strings.TrimSpace(decl[colon+1:])
		important := false
		if strings.HasSuffix(value, "!important") {
			important = true
			value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		}
		if name == "" || value == "" {
			continue
		}
		st.props = append(st.props, styleProp{name: name, value: value, important: important})
	}
	return st
}

// Get returns the current value of a property, or "" if unset.
func (st *Style) Get(name string) string {
	for i := len(st.props) - 1; i >= 0; i-- {
		if st.props[i].name == name {
			return st.props[i].value
		}
	}
	return ""
}

// Set forces a property value, replacing any prior declaration of the
// same name.
func (st *Style) Set(name, value string, important bool) {
	name = strings.ToLower(name)
	for i := range st.props {
		if st.props[i].name == name {
			st.props[i].value = value
			st.props[i].important = important
			return
		}
	}
	st.props = append(st.props, styleProp{name: name, value: value, important: important})
}

// Remove deletes every declaration of the property.
func (st *Style) Remove(name string) {
	name = strings.ToLower(name)
	out := st.props[:0]
	for _, p := range st.props {
		if p.name != name {
			out = append(out, p)
		}
	}
	st.props = out
}

// String serialises back to style-attribute form.
func (st *Style) String() string {
	var b strings.Builder
	for i, p := range st.props {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.name)
		b.WriteString(": ")
		b.WriteString(p.value)
		if p.important {
			b.WriteString(" !important")
		}
	}
	return b.String()
}

// Empty reports whether no declarations remain.
func (st *Style) Empty() bool { return len(st.props) == 0 }

// StyleSnapshot records the prior values of tracked properties on one
// node. A property absent from the map was unset before the transform;
// restore removes it rather than writing an empty value.
type StyleSnapshot map[string]string

// SnapshotStyle captures the current inline values of the given
// properties on a node.
func SnapshotStyle(n *html.Node, props []string) StyleSnapshot {
	st := ParseStyle(GetAttr(n, "style"))
	snap := StyleSnapshot{}
	for _, p := range props {
		if v := st.Get(p); v != "" {
			snap[p] = v
		}
	}
	return snap
}

// ForceStyle sets properties on a node's style attribute, all marked
// !important so author stylesheets cannot override the suppression.
// Keys are applied in sorted order for a stable serialisation.
func ForceStyle(n *html.Node, props map[string]string) {
	st := ParseStyle(GetAttr(n, "style"))
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st.Set(name, props[name], true)
	}
	SetAttr(n, "style", st.String())
}

// RestoreStyle removes the tracked properties from a node, then
// reasserts any values the snapshot recorded. Best-effort: only the
// tracked properties are touched, never the whole attribute.
func RestoreStyle(n *html.Node, tracked []string, snap StyleSnapshot) {
	st := ParseStyle(GetAttr(n, "style"))
	for _, p := range tracked {
		st.Remove(p)
	}
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st.Set(name, snap[name], false)
	}
	if st.Empty() {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", st.String())
}
