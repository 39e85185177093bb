package view

import (
	"testing"

	"holdem-core/internal/hsm"
	"holdem-core/pkg/rng"
)

func newTestHand(t *testing.T) *hsm.Hand {
	t.Helper()
	sys, err := rng.NewSystem(rng.NewAuditLogger())
	if err != nil {
		t.Fatalf("rng.NewSystem: %v", err)
	}
	settings := hsm.DefaultSettings()
	settings.Capacity = 4
	h := hsm.New(settings, sys, rng.NewAuditLogger())
	if _, err := h.Seat("alice", 2000); err != nil {
		t.Fatalf("seat alice: %v", err)
	}
	if _, err := h.Seat("bob", 2000); err != nil {
		t.Fatalf("seat bob: %v", err)
	}
	if err := h.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.Advance()
	return h
}

func TestProjectAllMasksOpponentCards(t *testing.T) {
	h := newTestHand(t)
	views := ProjectAll(h, nil)

	aliceView, ok := views["alice"]
	if !ok {
		t.Fatal("expected a view for alice")
	}
	for _, pv := range aliceView.Players {
		if pv.User == "alice" {
			if len(pv.Cards) != 2 {
				t.Errorf("alice should see her own 2 hole cards, got %d", len(pv.Cards))
			}
		} else if len(pv.Cards) != 0 {
			t.Errorf("alice must not see %s's hole cards mid-hand, got %v", pv.User, pv.Cards)
		}
	}
}

func TestProjectAllSharesSharedPointer(t *testing.T) {
	h := newTestHand(t)
	views := ProjectAll(h, []string{"spectator1", "spectator2"})

	a := views["alice"].Shared
	b := views["spectator1"].Shared
	if a != b {
		t.Error("Shared struct should be one shared pointer across every viewer, not copied per-view")
	}
}

func TestProjectForMatchesProjectAllForSameViewer(t *testing.T) {
	h := newTestHand(t)
	all := ProjectAll(h, nil)
	single := ProjectFor(h, "alice")

	if len(single.Players) != len(all["alice"].Players) {
		t.Errorf("ProjectFor player count = %d, want %d", len(single.Players), len(all["alice"].Players))
	}
	for i, pv := range single.Players {
		want := all["alice"].Players[i]
		if pv.User != want.User || len(pv.Cards) != len(want.Cards) {
			t.Errorf("ProjectFor seat %d = %+v, want %+v", i, pv, want)
		}
	}
}

func TestProjectForEmptyViewerSeesOnlyShowdownCards(t *testing.T) {
	h := newTestHand(t)
	v := ProjectFor(h, "")
	for _, pv := range v.Players {
		if len(pv.Cards) != 0 {
			t.Errorf("viewer with no seat should see no cards mid-hand, got %+v for seat %d", pv.Cards, pv.Seat)
		}
	}
}
