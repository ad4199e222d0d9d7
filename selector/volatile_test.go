package selector

import (
	"reflect"
	"testing"
)

func TestIsVolatile(t *testing.T) {
	volatile := []string{
		"",
		"css-1q2w3e",
		"sc-bdVaJa",
		"jsx-1234",
		"svelte-1a2b3c",
		"button_x7f3kq9",
		"a1b2c3d4e5f6",
		"550e8400-e29b-41d4-a716-446655440000",
		"promo-banner-920349",
		"x7Qz9",
	}
	for _, tok := range volatile {
		if !IsVolatile(tok) {
			t.Errorf("IsVolatile(%q): got false, want true", tok)
		}
	}

	stable := []string{
		"sidebar",
		"promo-banner",
		"nav-item",
		"mainContent",
		"btn-primary",
		"col-md-6",
		"article",
	}
	for _, tok := range stable {
		if IsVolatile(tok) {
			t.Errorf("IsVolatile(%q): got true, want false", tok)
		}
	}
}

func TestStableClasses(t *testing.T) {
	in := []string{"css-1q2w3e", "banner", "sc-bdVaJa", "urgent", "wide", "tall"}
	got := StableClasses(in, 3)
	want := []string{"banner", "urgent", "wide"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StableClasses: got %v, want %v", got, want)
	}
}
