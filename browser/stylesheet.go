// CLAUDE:SUMMARY Compiles suppression rules into a standalone CSS stylesheet for live-page injection.
package browser

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domveil/engine"
)

// Stylesheet compiles a set of rules into CSS text suitable for injection
// into a live page. Replace rules degrade to hide: a stylesheet cannot
// insert placeholder content, only suppress the original.
func Stylesheet(rules []*engine.Rule) string {
	var b strings.Builder
	for _, r := range rules {
		sel := r.Selector
		if sel == "" {
			continue
		}
		fmt.Fprintf(&b, "/* rule %s */\n", r.ID)
		switch r.Action {
		case engine.ActionBlank:
			fmt.Fprintf(&b, "%s {\n", sel)
			b.WriteString("  color: transparent !important;\n")
			b.WriteString("  background: transparent !important;\n")
			b.WriteString("  background-image: none !important;\n")
			b.WriteString("  border-color: transparent !important;\n")
			b.WriteString("  text-shadow: none !important;\n")
			b.WriteString("  box-shadow: none !important;\n")
			if !r.Strategy.PreserveLayout {
				b.WriteString("  opacity: 0 !important;\n")
			}
			b.WriteString("}\n")
		default: // hide, and replace degraded to hide
			if r.Strategy.PreserveLayout {
				fmt.Fprintf(&b, "%s {\n  visibility: hidden !important;\n  pointer-events: none !important;\n}\n", sel)
			} else {
				fmt.Fprintf(&b, "%s {\n  display: none !important;\n}\n", sel)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
