package selector

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
)

func mustDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseDocumentString(src, "https://example.com")
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func mustNode(t *testing.T, doc *dom.Document, probe string) *html.Node {
	t.Helper()
	nodes, err := doc.Query(probe)
	if err != nil {
		t.Fatalf("query %q: %v", probe, err)
	}
	if len(nodes) != 1 {
		t.Fatalf("query %q: got %d nodes, want 1", probe, len(nodes))
	}
	return nodes[0]
}

func TestGenerate_UniqueID(t *testing.T) {
	doc := mustDoc(t, `<html><body><div id="promo-banner-77" class="ad">Sale!</div></body></html>`)
	n := mustNode(t, doc, ".ad")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Selector != "#promo-banner-77" {
		t.Errorf("selector: got %q, want #promo-banner-77", res.Selector)
	}
	if res.Confidence != 0.95 {
		t.Errorf("confidence: got %v, want 0.95", res.Confidence)
	}
	if res.Anchors.ID != "promo-banner-77" {
		t.Errorf("anchor id: got %q", res.Anchors.ID)
	}
}

func TestGenerate_VolatileIDSkipped(t *testing.T) {
	doc := mustDoc(t, `<html><body><div id="div-920349581" data-testid="promo">Sale!</div></body></html>`)
	n := mustNode(t, doc, "[data-testid=promo]")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Selector != "[data-testid=promo]" {
		t.Errorf("selector: got %q, want the test-id tier", res.Selector)
	}
	if res.Confidence != 0.9 {
		t.Errorf("confidence: got %v, want 0.9", res.Confidence)
	}
}

func TestGenerate_StableAttrDisambiguatedByTag(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div data-qa="cta">a</div>
<button data-qa="cta">b</button>
</body></html>`)
	n := mustNode(t, doc, "button")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Selector != "button[data-qa=cta]" {
		t.Errorf("selector: got %q, want button[data-qa=cta]", res.Selector)
	}
	if res.Confidence != 0.85 {
		t.Errorf("confidence: got %v, want 0.85", res.Confidence)
	}
}

func TestGenerate_Landmark(t *testing.T) {
	doc := mustDoc(t, `<html><body><nav><a href="/">x</a></nav><p>text</p></body></html>`)
	n := mustNode(t, doc, "nav")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Selector != "nav" {
		t.Errorf("selector: got %q, want nav", res.Selector)
	}
	if res.Confidence != 0.8 {
		t.Errorf("confidence: got %v, want 0.8", res.Confidence)
	}
}

func TestGenerate_StableClass(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="css-1x9y2z cookie-banner">consent</div>
<p>text</p>
</body></html>`)
	n := mustNode(t, doc, ".cookie-banner")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Selector != ".cookie-banner" {
		t.Errorf("selector: got %q, want .cookie-banner", res.Selector)
	}
	if res.Confidence != 0.7 {
		t.Errorf("confidence: got %v, want 0.7", res.Confidence)
	}
}

func TestGenerate_StableAncestor(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div id="sidebar">
  <div><span>deep target</span></div>
</div>
<span>other</span>
</body></html>`)
	n := mustNode(t, doc, "#sidebar span")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(res.Selector, "#sidebar ") {
		t.Errorf("selector: got %q, want #sidebar-anchored path", res.Selector)
	}
	if res.Confidence != 0.75 {
		t.Errorf("confidence: got %v, want 0.75", res.Confidence)
	}
	if got, _ := doc.Query(res.Selector); len(got) != 1 {
		t.Errorf("generated selector matches %d nodes, want 1", len(got))
	}
}

func TestGenerate_PositionalFallback(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div><p>a</p><p>b</p></div>
<div><p>c</p><p>target</p></div>
</body></html>`)
	nodes, _ := doc.Query("p")
	n := nodes[3]

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Confidence != 0.3 {
		t.Errorf("confidence: got %v, want 0.3 (positional)", res.Confidence)
	}
	got, _ := doc.Query(res.Selector)
	if len(got) != 1 || got[0] != n {
		t.Errorf("selector %q did not locate the target", res.Selector)
	}
}

func TestGenerate_MarkerFallback(t *testing.T) {
	// A soup of identical siblings under identical parents defeats every
	// content-based tier, including positional (ambiguous at each level).
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		b.WriteString("<div><div><div>x</div></div></div>")
	}
	b.WriteString("</body></html>")
	doc := mustDoc(t, b.String())

	nodes, _ := doc.Query("body div")
	n := nodes[40]

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Confidence != 0.1 {
		t.Fatalf("confidence: got %v, want 0.1 (marker)", res.Confidence)
	}
	if !strings.Contains(res.Selector, MarkerAttr) {
		t.Fatalf("selector %q should use the marker attribute", res.Selector)
	}
	if dom.GetAttr(n, MarkerAttr) == "" {
		t.Error("marker attribute was not written to the node")
	}
	got, _ := doc.Query(res.Selector)
	if len(got) != 1 || got[0] != n {
		t.Errorf("marker selector did not locate the target")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="css-9z8x7 cookie-banner">consent</div>
</body></html>`)
	n := mustNode(t, doc, ".cookie-banner")

	first, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Selector != second.Selector || first.Confidence != second.Confidence {
		t.Errorf("generation not deterministic: %+v vs %+v", first, second)
	}
}

func TestGenerate_RejectsNonElement(t *testing.T) {
	doc := mustDoc(t, `<html><body><p>text</p></body></html>`)
	n := mustNode(t, doc, "p")
	if _, err := Generate(doc, n.FirstChild); err == nil {
		t.Error("generating for a text node should error")
	}
}

func TestAnchors_TextTruncated(t *testing.T) {
	long := strings.Repeat("x", 300)
	doc := mustDoc(t, `<html><body><div id="box">`+long+`</div></body></html>`)
	n := mustNode(t, doc, "#box")

	res, err := Generate(doc, n)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Anchors.Text) != 100 {
		t.Errorf("anchor text length: got %d, want 100", len(res.Anchors.Text))
	}
}
