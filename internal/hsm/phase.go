package hsm

// Phase is one of the 14 states a hand moves through from lobby to payout.
// Go has no zero-cost phantom-type phase markers without fighting the rest
// of the codebase's style, so phases collapse to this tagged enum; the
// phase-bound methods (Seat, Start, SubmitAction) validate the current phase
// at entry and return InvalidState otherwise (see gameerr.InvalidState).
// Unseat and Vote are accepted in any phase.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseSeatPlayers   Phase = "seat_players"
	PhaseMoveButton    Phase = "move_button"
	PhaseCollectBlinds Phase = "collect_blinds"
	PhaseDeal          Phase = "deal"
	PhaseTakeAction    Phase = "take_action"
	PhaseFlop          Phase = "flop"
	PhaseTurn          Phase = "turn"
	PhaseRiver         Phase = "river"
	PhaseShowHands     Phase = "show_hands"
	PhaseDistributePot Phase = "distribute_pot"
	PhaseRemovePlayers Phase = "remove_players"
	PhaseUpdateBlinds  Phase = "update_blinds"
	PhaseBootPlayers   Phase = "boot_players"
)

// street indexes the four betting rounds; advanced by the TakeAction /
// Flop / Turn / River cycle.
type street int

const (
	streetPreflop street = iota
	streetFlop
	streetTurn
	streetRiver
)
