package hsm

// ActionKind enumerates the legal player actions during TakeAction.
type ActionKind string

const (
	ActionFold  ActionKind = "fold"
	ActionCheck ActionKind = "check"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
	// ActionAllIn commits the player's entire remaining stack; Amount is
	// ignored. It resolves to a call if the stack doesn't cover even the
	// current bet, or a raise-to-stack otherwise — the wire protocol's
	// all_in is a convenience over call/raise, not a third betting shape.
	ActionAllIn ActionKind = "all_in"
)

// Action is a client-submitted action for the current action-on seat.
// Amount is only meaningful for Raise and means "raise to" (the player's
// new total committed amount for this round), matching spec §4.4.
type Action struct {
	Kind   ActionKind
	Amount uint64
}
