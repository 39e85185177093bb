package player

import "testing"

func TestFoldedAndActive(t *testing.T) {
	p := &Player{State: Fold}
	if !p.Folded() {
		t.Error("expected Folded() true for Fold state")
	}
	if p.Active() {
		t.Error("a folded player must not be Active()")
	}
}

func TestSitOutIsNotActive(t *testing.T) {
	p := &Player{State: SitOut}
	if p.Active() {
		t.Error("a sitting-out player must not be Active()")
	}
	if p.Folded() {
		t.Error("sitting out is not the same as folding")
	}
}

func TestIsAllIn(t *testing.T) {
	p := &Player{State: AllIn}
	if !p.IsAllIn() {
		t.Error("expected IsAllIn() true for AllIn state")
	}
	other := &Player{State: Call}
	if other.IsAllIn() {
		t.Error("a calling player is not all in")
	}
}

func TestClockwiseFromButtonStartsLeftOfButtonAndEndsOnButton(t *testing.T) {
	order := ClockwiseFromButton(2, 5)
	want := []int{3, 4, 0, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("order length = %d, want %d", len(order), len(want))
	}
	for i, s := range want {
		if order[i] != s {
			t.Errorf("order[%d] = %d, want %d", i, order[i], s)
		}
	}
}

func TestNextSeatClockwiseSkipsAndWraps(t *testing.T) {
	skip := func(seat int) bool { return seat == 1 || seat == 2 }
	next := NextSeatClockwise(0, 4, skip)
	if next != 3 {
		t.Errorf("NextSeatClockwise = %d, want 3 (skipping 1 and 2)", next)
	}
}

func TestNextSeatClockwiseReturnsMinusOneWhenAllSkipped(t *testing.T) {
	skip := func(seat int) bool { return true }
	if got := NextSeatClockwise(0, 4, skip); got != -1 {
		t.Errorf("NextSeatClockwise = %d, want -1 when every seat is skipped", got)
	}
}

func TestNextSeatClockwiseWrapsAroundToLowerIndex(t *testing.T) {
	skip := func(seat int) bool { return seat != 0 }
	if got := NextSeatClockwise(3, 4, skip); got != 0 {
		t.Errorf("NextSeatClockwise = %d, want 0 after wrapping past seat 3", got)
	}
}
