package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domveil/dbopen"
	"github.com/hazyhaar/domveil/engine"
)

const origin = "https://example.com"

func memStore(t *testing.T) *Store {
	t.Helper()
	return New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func sampleRule(id string, createdAt int64) *engine.Rule {
	return &engine.Rule{
		ID:        id,
		Host:      "example.com",
		Action:    engine.ActionHide,
		Selector:  "#" + id,
		CreatedAt: createdAt,
		Version:   1,
	}
}

func TestLoadRules_EmptyOrigin(t *testing.T) {
	s := memStore(t)
	rules, err := s.LoadRules(context.Background(), origin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("got %d rules, want 0", len(rules))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	r := sampleRule("promo", 100)
	r.Notes = "promo banner"
	r.Confidence = 0.95
	if err := s.SaveRule(ctx, origin, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	rules, err := s.LoadRules(ctx, origin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	got := rules[0]
	if got.ID != "promo" || got.Selector != "#promo" || got.Notes != "promo banner" || got.Confidence != 0.95 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSaveRule_UpsertsByID(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	r := sampleRule("promo", 100)
	if err := s.SaveRule(ctx, origin, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	r.Notes = "updated"
	if err := s.SaveRule(ctx, origin, r); err != nil {
		t.Fatalf("save again: %v", err)
	}

	n, err := s.CountRules(ctx, origin)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count: got %d, want 1", n)
	}
	rules, _ := s.LoadRules(ctx, origin)
	if rules[0].Notes != "updated" {
		t.Errorf("notes: got %q, want updated", rules[0].Notes)
	}
}

func TestLoadRules_CreationOrder(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	for i := 3; i >= 1; i-- {
		if err := s.SaveRule(ctx, origin, sampleRule(fmt.Sprintf("r%d", i), int64(i*100))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	rules, err := s.LoadRules(ctx, origin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("got %d rules", len(rules))
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		if rules[i].ID != want {
			t.Errorf("rules[%d]: got %s, want %s", i, rules[i].ID, want)
		}
	}
}

func TestSaveRule_TrimsOriginAtCap(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	for i := 0; i < 110; i++ {
		if err := s.SaveRule(ctx, origin, sampleRule(fmt.Sprintf("r%03d", i), int64(i+1))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	n, err := s.CountRules(ctx, origin)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 100 {
		t.Fatalf("count: got %d, want 100", n)
	}
	rules, _ := s.LoadRules(ctx, origin)
	if rules[0].ID != "r010" {
		t.Errorf("oldest surviving rule: got %s, want r010", rules[0].ID)
	}
}

func TestDeleteRule(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	s.SaveRule(ctx, origin, sampleRule("r1", 1))
	ok, err := s.DeleteRule(ctx, origin, "r1")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = s.DeleteRule(ctx, origin, "r1")
	if err != nil {
		t.Fatalf("delete again: %v", err)
	}
	if ok {
		t.Error("second delete should report false")
	}
}

func TestOrigins_IsolatedPerOrigin(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	s.SaveRule(ctx, "https://a.com", sampleRule("r1", 1))
	s.SaveRule(ctx, "https://b.com", sampleRule("r2", 2))

	rules, err := s.LoadRules(ctx, "https://a.com")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "r1" {
		t.Errorf("origin a: got %+v", rules)
	}

	origins, err := s.Origins(ctx)
	if err != nil {
		t.Fatalf("origins: %v", err)
	}
	if len(origins) != 2 {
		t.Errorf("origins: got %v", origins)
	}
}

func TestLoadRules_SkipsCorruptRow(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	s.SaveRule(ctx, origin, sampleRule("good", 1))
	if _, err := s.DB.ExecContext(ctx, `
		INSERT INTO rules (origin, id, payload, created_at, updated_at)
		VALUES (?, 'bad', '{not json', 2, 2)`, origin); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	rules, err := s.LoadRules(ctx, origin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "good" {
		t.Errorf("corrupt row not skipped: %+v", rules)
	}
}

func TestRuleHealth(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	if err := s.SaveRule(ctx, origin, sampleRule("r1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}

	last, fails, err := s.RuleHealth(ctx, origin, "r1")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if last != 0 || fails != 0 {
		t.Fatalf("fresh rule: last=%d fails=%d, want 0/0", last, fails)
	}

	s.RecordRuleFailure(ctx, origin, "r1")
	s.RecordRuleFailure(ctx, origin, "r1")
	_, fails, err = s.RuleHealth(ctx, origin, "r1")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if fails != 2 {
		t.Fatalf("fail count: got %d, want 2", fails)
	}

	// Success resets the streak and stamps last_success.
	if err := s.RecordRuleSuccess(ctx, origin, "r1"); err != nil {
		t.Fatalf("record success: %v", err)
	}
	last, fails, err = s.RuleHealth(ctx, origin, "r1")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if last == 0 || fails != 0 {
		t.Fatalf("after success: last=%d fails=%d, want >0/0", last, fails)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.SaveRule(ctx, origin, sampleRule("r1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	rules, err := s.LoadRules(ctx, origin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "r1" {
		t.Fatalf("round trip: %+v", rules)
	}
}
