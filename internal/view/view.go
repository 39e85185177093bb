// Package view projects a hand's internal state into per-user views that
// mask opponent hole cards, sharing immutable sub-structures across every
// viewer of the same hand rather than deep-copying them.
package view

import (
	"holdem-core/internal/card"
	"holdem-core/internal/hsm"
	"holdem-core/internal/player"
)

// Shared holds the parts of a GameView that are identical for every viewer:
// blinds, board, pot summary, positions. It is built once per projection
// and referenced by pointer from every per-user View, mirroring the
// reference-counted sharing described in spec §4.5 (Go's GC retires the
// need for an explicit refcount).
type Shared struct {
	Blinds    hsm.Blinds
	Board     []card.Card
	PotTotal  uint64
	Button    int
	ActionOn  int
	CurrentBet uint64
}

// PlayerView is one seat as seen by a particular viewer; hole cards are
// present only if the viewer owns the seat or the seat is at showdown.
type PlayerView struct {
	Seat   int
	User   string
	State  player.State
	Stack  uint64
	Cards  []card.Card `json:"cards,omitempty"`
}

// View is the full per-user projection: the shared immutable fields plus a
// caller-specific player list.
type View struct {
	Shared  *Shared
	Players []PlayerView
	You     string
}

// ProjectAll computes a map from username to View. Pure w.r.t. the hand (no
// mutation); O(players) with O(1) per shared field, since Shared is built
// once and referenced, never copied, by every viewer including spectators.
func ProjectAll(h *hsm.Hand, spectators []string) map[string]View {
	shared := &Shared{
		Blinds:     h.Blinds(),
		Board:      h.Board(),
		PotTotal:   h.PotTotal(),
		Button:     h.Button(),
		ActionOn:   h.ActionOn(),
		CurrentBet: h.CurrentBet(),
	}

	seats := h.Seats()
	viewers := make([]string, 0, len(seats)+len(spectators))
	for _, p := range seats {
		if p != nil {
			viewers = append(viewers, p.User)
		}
	}
	viewers = append(viewers, spectators...)

	showdown := h.Phase() == hsm.PhaseShowHands || h.Phase() == hsm.PhaseDistributePot

	out := make(map[string]View, len(viewers))
	for _, viewer := range viewers {
		out[viewer] = View{
			Shared:  shared,
			Players: projectPlayers(seats, viewer, showdown),
			You:     viewer,
		}
	}
	return out
}

// ProjectFor computes the view for a single viewer without building the map
// for every seat; used by GetState requests for one user (or the operator
// view when viewer is "", which never owns a seat and so only sees
// showdown-revealed cards).
func ProjectFor(h *hsm.Hand, viewer string) View {
	shared := &Shared{
		Blinds:     h.Blinds(),
		Board:      h.Board(),
		PotTotal:   h.PotTotal(),
		Button:     h.Button(),
		ActionOn:   h.ActionOn(),
		CurrentBet: h.CurrentBet(),
	}
	showdown := h.Phase() == hsm.PhaseShowHands || h.Phase() == hsm.PhaseDistributePot
	return View{
		Shared:  shared,
		Players: projectPlayers(h.Seats(), viewer, showdown),
		You:     viewer,
	}
}

func projectPlayers(seats []*player.Player, viewer string, showdown bool) []PlayerView {
	views := make([]PlayerView, 0, len(seats))
	for _, p := range seats {
		if p == nil {
			continue
		}
		pv := PlayerView{Seat: p.Seat, User: p.User, State: p.State, Stack: p.Stack}
		reveal := p.User == viewer || (showdown && !p.Folded())
		if reveal {
			pv.Cards = p.Hole
		}
		views = append(views, pv)
	}
	return views
}
