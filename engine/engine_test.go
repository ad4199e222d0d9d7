package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/domveil/dom"
)

func testDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseDocumentString(src, "https://example.com")
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return doc
}

func hideRule(id, sel string) *Rule {
	return &Rule{ID: id, Host: "example.com", Action: ActionHide, Selector: sel}
}

func styleOf(t *testing.T, doc *dom.Document, sel string) *dom.Style {
	t.Helper()
	n, err := doc.QuerySelector(sel)
	if err != nil || n == nil {
		t.Fatalf("query %q: %v", sel, err)
	}
	return dom.ParseStyle(dom.GetAttr(n, "style"))
}

func TestApplyRule_Hide(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad">x</div><p>keep</p></body></html>`)
	e := New(doc)

	n, err := e.ApplyRule(hideRule("r1", ".ad"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected: got %d, want 1", n)
	}
	if got := styleOf(t, doc, ".ad").Get("display"); got != "none" {
		t.Errorf("display: got %q, want none", got)
	}
	target, _ := doc.QuerySelector(".ad")
	if dom.GetAttr(target, "data-veil") != StateHidden {
		t.Errorf("marker state: got %q, want hidden", dom.GetAttr(target, "data-veil"))
	}
	if dom.GetAttr(target, "data-veil-rule") != "r1" {
		t.Errorf("marker rule: got %q", dom.GetAttr(target, "data-veil-rule"))
	}
	if e.AffectedCount("r1") != 1 {
		t.Errorf("AffectedCount: got %d", e.AffectedCount("r1"))
	}
}

func TestApplyRule_HidePreserveLayout(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad">x</div></body></html>`)
	e := New(doc)

	r := hideRule("r1", ".ad")
	r.Strategy.PreserveLayout = true
	if _, err := e.ApplyRule(r); err != nil {
		t.Fatalf("apply: %v", err)
	}

	st := styleOf(t, doc, ".ad")
	if got := st.Get("visibility"); got != "hidden" {
		t.Errorf("visibility: got %q, want hidden", got)
	}
	if got := st.Get("display"); got != "" {
		t.Errorf("display should be untouched, got %q", got)
	}
}

func TestApplyRule_Blank(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad" style="color: red">x</div></body></html>`)
	e := New(doc)

	r := &Rule{ID: "r1", Action: ActionBlank, Selector: ".ad"}
	if _, err := e.ApplyRule(r); err != nil {
		t.Fatalf("apply: %v", err)
	}

	st := styleOf(t, doc, ".ad")
	if got := st.Get("color"); got != "transparent" {
		t.Errorf("color: got %q, want transparent", got)
	}
	if got := st.Get("opacity"); got != "0" {
		t.Errorf("opacity: got %q, want 0", got)
	}
}

func TestApplyRule_ReplaceAddsPlaceholder(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad"><b>loud</b></div></body></html>`)
	e := New(doc)

	r := &Rule{ID: "r1", Action: ActionReplace, Selector: ".ad", Notes: "ad slot"}
	if _, err := e.ApplyRule(r); err != nil {
		t.Fatalf("apply: %v", err)
	}

	target, _ := doc.QuerySelector(".ad")
	if dom.GetAttr(target, "data-veil") != StateReplaced {
		t.Fatalf("state: got %q, want replaced", dom.GetAttr(target, "data-veil"))
	}
	ph, _ := doc.QuerySelector("[data-veil-placeholder]")
	if ph == nil {
		t.Fatal("placeholder not inserted")
	}
	if !strings.Contains(dom.Text(ph), "ad slot") {
		t.Errorf("placeholder text: got %q", dom.Text(ph))
	}
}

func TestApplyRule_ReplaceDegradesToHideOnVoidElement(t *testing.T) {
	doc := testDoc(t, `<html><body><img class="ad" src="x.png"></body></html>`)
	e := New(doc)

	r := &Rule{ID: "r1", Action: ActionReplace, Selector: ".ad"}
	if _, err := e.ApplyRule(r); err != nil {
		t.Fatalf("apply: %v", err)
	}

	target, _ := doc.QuerySelector(".ad")
	if dom.GetAttr(target, "data-veil") != StateHidden {
		t.Errorf("state: got %q, want hidden (degraded)", dom.GetAttr(target, "data-veil"))
	}
	if got := styleOf(t, doc, ".ad").Get("display"); got != "none" {
		t.Errorf("display: got %q, want none", got)
	}
}

func TestApplyRule_BroadnessGuard(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 60; i++ {
		b.WriteString(`<p class="spam">x</p>`)
	}
	b.WriteString("</body></html>")
	doc := testDoc(t, b.String())
	e := New(doc)

	n, err := e.ApplyRule(hideRule("r1", ".spam"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 0 {
		t.Fatalf("affected: got %d, want 0 (guard)", n)
	}
	if e.Rule("r1") != nil {
		t.Error("over-broad rule must not be recorded")
	}
	if e.UndoDepth() != 0 {
		t.Error("over-broad rule must not push an undo entry")
	}
	nodes, _ := doc.Query("[data-veil]")
	if len(nodes) != 0 {
		t.Errorf("no node should be decorated, got %d", len(nodes))
	}
}

func TestApplyRule_AtCapExactlyApplies(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		b.WriteString(`<p class="spam">x</p>`)
	}
	b.WriteString("</body></html>")
	doc := testDoc(t, b.String())
	e := New(doc)

	n, err := e.ApplyRule(hideRule("r1", ".spam"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 50 {
		t.Fatalf("affected: got %d, want 50", n)
	}
}

func TestApplyRule_NoTargetsNotRecorded(t *testing.T) {
	doc := testDoc(t, `<html><body><p>x</p></body></html>`)
	e := New(doc)

	n, err := e.ApplyRule(hideRule("r1", ".missing"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 0 || e.Rule("r1") != nil {
		t.Errorf("no-target rule must be a no-op, got n=%d recorded=%v", n, e.Rule("r1") != nil)
	}
}

func TestApplyRule_BadSelectorErrors(t *testing.T) {
	doc := testDoc(t, `<html><body><p>x</p></body></html>`)
	e := New(doc)
	if _, err := e.ApplyRule(hideRule("r1", "p:hover")); err == nil {
		t.Error("unparseable selector should error")
	}
}

func TestApplyRule_CriticalNodesExcluded(t *testing.T) {
	doc := testDoc(t, `<html><body><p>x</p></body></html>`)
	e := New(doc)

	n, err := e.ApplyRule(hideRule("r1", "body"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 0 {
		t.Errorf("body must never be a target, got %d", n)
	}
}

func TestApplyRule_OverlapExcluded(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad promo">x</div></body></html>`)
	e := New(doc)

	if _, err := e.ApplyRule(hideRule("r1", ".ad")); err != nil {
		t.Fatalf("apply r1: %v", err)
	}
	n, err := e.ApplyRule(hideRule("r2", ".promo"))
	if err != nil {
		t.Fatalf("apply r2: %v", err)
	}
	if n != 0 {
		t.Errorf("marked node re-targeted: got %d, want 0", n)
	}
	target, _ := doc.QuerySelector(".ad")
	if dom.GetAttr(target, "data-veil-rule") != "r1" {
		t.Errorf("owner changed: got %q", dom.GetAttr(target, "data-veil-rule"))
	}
}

func TestUndo_RestoresSnapshot(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad" style="display: flex; color: red">x</div></body></html>`)
	e := New(doc)

	if _, err := e.ApplyRule(hideRule("r1", ".ad")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !e.Undo() {
		t.Fatal("undo returned false")
	}

	st := styleOf(t, doc, ".ad")
	if got := st.Get("display"); got != "flex" {
		t.Errorf("display: got %q, want flex (snapshot)", got)
	}
	if got := st.Get("color"); got != "red" {
		t.Errorf("author color lost: got %q", got)
	}
	target, _ := doc.QuerySelector(".ad")
	if dom.HasAttr(target, "data-veil") {
		t.Error("marker survived undo")
	}
	if e.Rule("r1") != nil {
		t.Error("rule should be forgotten once its last node is restored")
	}
}

func TestUndo_BlankRestoresSnapshot(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad" style="color: red">x</div></body></html>`)
	e := New(doc)

	r := &Rule{ID: "r1", Host: "example.com", Action: ActionBlank, Selector: ".ad"}
	if _, err := e.ApplyRule(r); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := styleOf(t, doc, ".ad").Get("color"); got != "transparent" {
		t.Fatalf("blank not applied: color %q", got)
	}
	if !e.Undo() {
		t.Fatal("undo returned false")
	}

	st := styleOf(t, doc, ".ad")
	if got := st.Get("color"); got != "red" {
		t.Errorf("author color lost: got %q, want red (snapshot)", got)
	}
	for _, p := range []string{"opacity", "pointer-events", "background", "box-shadow"} {
		if got := st.Get(p); got != "" {
			t.Errorf("%s residue after undo: got %q, want unset", p, got)
		}
	}
	target, _ := doc.QuerySelector(".ad")
	if dom.HasAttr(target, "data-veil") {
		t.Error("marker survived undo")
	}
}

func TestUndo_ReplaceRemovesPlaceholder(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad">content</div></body></html>`)
	e := New(doc)

	r := &Rule{ID: "r1", Action: ActionReplace, Selector: ".ad"}
	if _, err := e.ApplyRule(r); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !e.Undo() {
		t.Fatal("undo returned false")
	}

	ph, _ := doc.QuerySelector("[data-veil-placeholder]")
	if ph != nil {
		t.Error("placeholder survived undo")
	}
	target, _ := doc.QuerySelector(".ad")
	if dom.HasAttr(target, "style") {
		t.Errorf("style residue after undo: %q", dom.GetAttr(target, "style"))
	}
}

func TestUndo_RemoveReapplies(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="ad">x</div></body></html>`)
	e := New(doc)

	if _, err := e.ApplyRule(hideRule("r1", ".ad")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !e.RemoveRule("r1") {
		t.Fatal("remove returned false")
	}
	if got := styleOf(t, doc, ".ad").Get("display"); got != "" {
		t.Fatalf("display after remove: got %q, want unset", got)
	}

	// Undo of the remove re-applies the rule.
	if !e.Undo() {
		t.Fatal("undo returned false")
	}
	if got := styleOf(t, doc, ".ad").Get("display"); got != "none" {
		t.Errorf("display after undo-of-remove: got %q, want none", got)
	}
	if e.Rule("r1") == nil {
		t.Error("rule should be recorded again")
	}
}

func TestUndo_EmptyStack(t *testing.T) {
	doc := testDoc(t, `<html><body><p>x</p></body></html>`)
	e := New(doc)
	if e.Undo() {
		t.Error("undo on empty stack should return false")
	}
}

func TestUndo_DepthCapEvictsOldest(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<div class="s%d">x</div>`, i)
	}
	b.WriteString("</body></html>")
	doc := testDoc(t, b.String())
	e := New(doc)

	for i := 0; i < 25; i++ {
		if _, err := e.ApplyRule(hideRule(fmt.Sprintf("r%d", i), fmt.Sprintf(".s%d", i))); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	if e.UndoDepth() != 20 {
		t.Fatalf("depth: got %d, want 20", e.UndoDepth())
	}
	undone := 0
	for e.Undo() {
		undone++
	}
	if undone != 20 {
		t.Errorf("undone: got %d, want 20", undone)
	}
	// The five oldest rules fell off the stack and stay applied.
	for i := 0; i < 5; i++ {
		if e.Rule(fmt.Sprintf("r%d", i)) == nil {
			t.Errorf("r%d should still be recorded", i)
		}
	}
}

func TestRemoveRule_Unknown(t *testing.T) {
	doc := testDoc(t, `<html><body><p>x</p></body></html>`)
	e := New(doc)
	if e.RemoveRule("ghost") {
		t.Error("removing an unknown rule should return false")
	}
}

func TestResetAll(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="a">x</div><div class="b">y</div></body></html>`)
	e := New(doc)

	e.ApplyRule(hideRule("r1", ".a"))
	e.ApplyRule(hideRule("r2", ".b"))
	e.ResetAll()

	if len(e.Rules()) != 0 {
		t.Errorf("rules after reset: got %d", len(e.Rules()))
	}
	if e.UndoDepth() != 0 {
		t.Errorf("undo depth after reset: got %d", e.UndoDepth())
	}
	if e.Undo() {
		t.Error("undo after reset should return false")
	}
	nodes, _ := doc.Query("[data-veil]")
	if len(nodes) != 0 {
		t.Errorf("decorated nodes after reset: got %d", len(nodes))
	}
	if got := styleOf(t, doc, ".a").Get("display"); got != "" {
		t.Errorf("display residue after reset: %q", got)
	}
}

func TestValidateRule(t *testing.T) {
	doc := testDoc(t, `<html><body><p>x</p></body></html>`)
	e := New(doc)

	cases := []struct {
		name string
		rule *Rule
	}{
		{"nil", nil},
		{"missing id", &Rule{Action: ActionHide, Selector: "p"}},
		{"missing selector", &Rule{ID: "r", Action: ActionHide}},
		{"bad action", &Rule{ID: "r", Action: "nuke", Selector: "p"}},
		{"bad selector", &Rule{ID: "r", Action: ActionHide, Selector: "p::before"}},
	}
	for _, tc := range cases {
		if err := e.ValidateRule(tc.rule); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	if err := e.ValidateRule(hideRule("r", "p")); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}
}

func TestValidateRule_BroadnessCeiling(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 120; i++ {
		b.WriteString("<p>x</p>")
	}
	b.WriteString("</body></html>")
	doc := testDoc(t, b.String())
	e := New(doc)

	if err := e.ValidateRule(hideRule("r", "p")); err == nil {
		t.Error("selector over the validation ceiling should be rejected")
	}
}

func TestRegisterOwnUI_ExcludedFromTargets(t *testing.T) {
	doc := testDoc(t, `<html><body><div class="panel ad">ui</div><div class="ad">page</div></body></html>`)
	e := New(doc)

	ui, _ := doc.QuerySelector(".panel")
	e.RegisterOwnUI(ui)

	n, err := e.ApplyRule(hideRule("r1", ".ad"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected: got %d, want 1 (own UI skipped)", n)
	}
	if dom.HasAttr(ui, "data-veil") {
		t.Error("own UI was decorated")
	}
}
