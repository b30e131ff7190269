package core

import (
	"errors"
	"math"
	"testing"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestValidateBadgeID(t *testing.T) {
	if err := ValidateBadgeID("tournament_veteran"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateBadgeID("bad badge"); err == nil {
		t.Fatalf("expected invalid badge err")
	}
}

func TestNormalizeBadgeIDs(t *testing.T) {
	got := NormalizeBadgeIDs([]BadgeID{" mvp ", "", "bad badge", "beta_tester", "mvp"})
	want := []BadgeID{"beta_tester", "mvp"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if NormalizeBadgeIDs(nil) != nil {
		t.Fatal("expected nil for no ids")
	}
}

func TestStatRecordNormalized(t *testing.T) {
	r := StatRecord{TournamentsJoined: -3, TournamentsWon: 2, TotalEarnings: math.NaN()}
	n := r.Normalized()
	if n.TournamentsJoined != 0 || n.TournamentsWon != 2 || n.TotalEarnings != 0 {
		t.Fatalf("unexpected normalized record: %+v", n)
	}
	if r.Normalized().TotalEarnings != 0 || (StatRecord{TotalEarnings: math.Inf(1)}).Normalized().TotalEarnings != 0 {
		t.Fatal("non-finite earnings should evaluate as 0")
	}
}

func TestProfileClone(t *testing.T) {
	p := NewProfile("alice")
	p.Stats.ExistingBadgeIDs = []BadgeID{"mvp"}
	cp := p.Clone()
	cp.Stats.ExistingBadgeIDs[0] = "changed"
	if p.Stats.ExistingBadgeIDs[0] != "mvp" {
		t.Fatal("clone shares badge slice")
	}
	if p.Role != RolePlayer {
		t.Fatalf("new profile role = %s", p.Role)
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(" " + string(r) + " ")
		if err != nil || got != r {
			t.Fatalf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	if r, err := ParseRole("ADMIN"); err != nil || r != RoleAdmin {
		t.Fatalf("case-insensitive parse failed: %q %v", r, err)
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if Role("superuser").Effective() != RolePlayer {
		t.Fatal("unknown role should fall back to player")
	}
}

func TestStatValid(t *testing.T) {
	for _, s := range Stats {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Stat("kills").Valid() {
		t.Fatal("unknown stat accepted")
	}
}
