package table

import (
	"holdem-core/internal/hsm"
	"holdem-core/internal/view"
)

// Reply is the envelope every message handler responds with.
type Reply struct {
	View *view.View
	Err  error
}

// joinMsg asks the actor to seat a user, moving buy_in from wallet to escrow
// first. Replies false via Reply.Err on any validation or wallet failure.
type joinMsg struct {
	user            string
	buyIn           uint64
	idempotencyKey  string
	reply           chan Reply
}

// leaveMsg removes a seated (or waitlisted/spectating) user and returns
// their remaining stack to the wallet.
type leaveMsg struct {
	user  string
	reply chan Reply
}

// actionMsg submits a player action for validation against the HSM.
type actionMsg struct {
	user   string
	action hsm.Action
	reply  chan Reply
}

// spectateMsg adds a spectator who receives views but never acts.
type spectateMsg struct {
	user  string
	reply chan Reply
}

// waitlistMsg enqueues a user for the next open seat.
type waitlistMsg struct {
	user  string
	reply chan Reply
}

// voteMsg delegates a kick vote by user against subject to the HSM.
type voteMsg struct {
	user    string
	subject string
	reply   chan Reply
}

// topUpMsg adds chips to a seated player's stack, subject to a per-user
// cooldown and the table's chip cap.
type topUpMsg struct {
	user           string
	amount         uint64
	idempotencyKey string
	reply          chan Reply
}

// getStateMsg requests a read-only snapshot view for one user (or the
// operator view when user is empty).
type getStateMsg struct {
	user  string
	reply chan Reply
}

// closeMsg is the only graceful shutdown path: drains escrows, pushes a
// final view, and stops the actor's loop.
type closeMsg struct {
	reply chan Reply
}
