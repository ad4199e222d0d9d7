package browser

import (
	"strings"
	"testing"

	"github.com/hazyhaar/domveil/engine"
)

func TestStylesheet_Hide(t *testing.T) {
	css := Stylesheet([]*engine.Rule{
		{ID: "r1", Selector: ".promo", Action: engine.ActionHide},
	})
	if !strings.Contains(css, "/* rule r1 */") {
		t.Fatalf("missing rule comment:\n%s", css)
	}
	if !strings.Contains(css, ".promo {") {
		t.Fatalf("missing selector block:\n%s", css)
	}
	if !strings.Contains(css, "display: none !important") {
		t.Fatalf("hide should use display none:\n%s", css)
	}
}

func TestStylesheet_HidePreserveLayout(t *testing.T) {
	css := Stylesheet([]*engine.Rule{
		{ID: "r1", Selector: "#ad-slot", Action: engine.ActionHide,
			Strategy: engine.Strategy{PreserveLayout: true}},
	})
	if !strings.Contains(css, "visibility: hidden !important") {
		t.Fatalf("preserve-layout hide should use visibility:\n%s", css)
	}
	if !strings.Contains(css, "pointer-events: none !important") {
		t.Fatalf("preserve-layout hide should disable pointer events:\n%s", css)
	}
	if strings.Contains(css, "display: none") {
		t.Fatalf("preserve-layout hide must not collapse the box:\n%s", css)
	}
}

func TestStylesheet_Blank(t *testing.T) {
	css := Stylesheet([]*engine.Rule{
		{ID: "r1", Selector: ".tracker", Action: engine.ActionBlank},
	})
	for _, want := range []string{
		"color: transparent !important",
		"background: transparent !important",
		"background-image: none !important",
		"opacity: 0 !important",
	} {
		if !strings.Contains(css, want) {
			t.Fatalf("blank missing %q:\n%s", want, css)
		}
	}
	if strings.Contains(css, "display: none") {
		t.Fatalf("blank must not remove the box:\n%s", css)
	}
}

func TestStylesheet_BlankPreserveLayout(t *testing.T) {
	css := Stylesheet([]*engine.Rule{
		{ID: "r1", Selector: ".tracker", Action: engine.ActionBlank,
			Strategy: engine.Strategy{PreserveLayout: true}},
	})
	if strings.Contains(css, "opacity") {
		t.Fatalf("preserve-layout blank must keep content box painted:\n%s", css)
	}
	if !strings.Contains(css, "color: transparent !important") {
		t.Fatalf("blank should still strip paint:\n%s", css)
	}
}

func TestStylesheet_ReplaceDegradesToHide(t *testing.T) {
	css := Stylesheet([]*engine.Rule{
		{ID: "r1", Selector: ".banner", Action: engine.ActionReplace},
	})
	if !strings.Contains(css, "display: none !important") {
		t.Fatalf("replace should degrade to hide in CSS:\n%s", css)
	}
}

func TestStylesheet_SkipsEmptySelector(t *testing.T) {
	css := Stylesheet([]*engine.Rule{
		{ID: "r1", Selector: "", Action: engine.ActionHide},
		{ID: "r2", Selector: ".keep", Action: engine.ActionHide},
	})
	if strings.Contains(css, "rule r1") {
		t.Fatalf("empty selector should be skipped:\n%s", css)
	}
	if !strings.Contains(css, "rule r2") {
		t.Fatalf("valid rule should remain:\n%s", css)
	}
}

func TestStylesheet_Empty(t *testing.T) {
	if css := Stylesheet(nil); css != "" {
		t.Fatalf("no rules should produce empty stylesheet, got %q", css)
	}
}
