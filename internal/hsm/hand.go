// Package hsm implements the 14-phase hand state machine that drives one
// hand of Texas Hold'em from lobby to payout.
package hsm

import (
	"log"

	"holdem-core/internal/card"
	"holdem-core/internal/eval"
	"holdem-core/internal/gameerr"
	"holdem-core/internal/player"
	"holdem-core/internal/pot"
	"holdem-core/pkg/rng"
)

const eventQueueCapacity = 256

// Hand owns one table's mutable game data: seated players, the deck, the
// board, positions, blinds, and the bounded event queue. It is the spec's
// GameData aggregate plus the phase tag.
type Hand struct {
	settings Settings
	rngSys   *rng.System
	audit    *rng.AuditLogger

	phase    Phase
	handsPlayed int

	seats    []*player.Player // index == seat, nil == empty seat
	button   int
	smallBlindSeat int
	bigBlindSeat   int
	actionOn int

	blinds Blinds
	board  []card.Card
	deck   *card.Deck

	street street
	currentBet uint64
	minRaise   uint64
	actedSinceLastRaise map[int]bool
	totalCommitted      map[int]uint64
	roundOpeningSeat    int

	kickVotes map[int]map[string]bool // seat -> voter -> true

	lastAwards []pot.Award

	events *eventQueue
}

// New creates an idle hand in Lobby phase with `capacity` empty seats.
func New(settings Settings, rngSys *rng.System, audit *rng.AuditLogger) *Hand {
	return &Hand{
		settings: settings,
		rngSys:   rngSys,
		audit:    audit,
		phase:    PhaseLobby,
		seats:    make([]*player.Player, settings.Capacity),
		blinds:   Blinds{Small: 10, Big: 20},
		events:   newEventQueue(eventQueueCapacity),
		kickVotes: map[int]map[string]bool{},
	}
}

func (h *Hand) Phase() Phase { return h.phase }

// HandsPlayed reports the number of hands completed at this table, usable
// as a per-table hand identifier by callers that need one.
func (h *Hand) HandsPlayed() int { return h.handsPlayed }

func (h *Hand) emit(e Event) { h.events.push(e) }

// Drain returns and clears all events queued since the last drain.
func (h *Hand) Drain() []Event { return h.events.Drain() }

// DroppedEvents reports the cumulative count of events discarded by
// backpressure, for the registry/metrics layer to export.
func (h *Hand) DroppedEvents() int { return h.events.Dropped() }

// Seat places a user in the first empty seat. Only legal in Lobby.
func (h *Hand) Seat(user string, buyIn uint64) (int, error) {
	if h.phase != PhaseLobby {
		return 0, gameerr.NewUserError(gameerr.InvalidState, "seat only legal in lobby")
	}
	for _, p := range h.seats {
		if p != nil && p.User == user {
			return 0, gameerr.NewUserError(gameerr.AlreadyJoined, user)
		}
	}
	seat := -1
	for i, p := range h.seats {
		if p == nil {
			seat = i
			break
		}
	}
	if seat == -1 {
		return 0, gameerr.NewUserError(gameerr.TableFull, "")
	}
	h.seats[seat] = &player.Player{Seat: seat, User: user, Stack: buyIn, State: player.Wait}
	h.emit(Event{Kind: EventSeatAssigned, Seat: seat, User: user, Amount: buyIn})
	return seat, nil
}

// Unseat removes a user from their seat, wherever in the hand they are.
// In Lobby the seat is freed at once. Mid-hand the HSM never panics: it
// marks the seat departed (SitOut) and removes it at the next
// RemovePlayers phase. The returned amount is the seat's stack at the time
// of the call.
func (h *Hand) Unseat(user string) (uint64, error) {
	for i, p := range h.seats {
		if p != nil && p.User == user {
			stack := p.Stack
			if h.phase == PhaseLobby {
				h.seats[i] = nil
			} else {
				p.State = player.SitOut
			}
			return stack, nil
		}
	}
	return 0, gameerr.NewUserError(gameerr.NotAtTable, user)
}

func (h *Hand) seatedCount() int {
	n := 0
	for _, p := range h.seats {
		if p != nil {
			n++
		}
	}
	return n
}

// ReadyToStart reports whether the lobby has enough funded players to begin
// a hand (spec §4.4 Lobby entry condition).
func (h *Hand) ReadyToStart() bool {
	if h.phase != PhaseLobby {
		return false
	}
	n := 0
	for _, p := range h.seats {
		if p != nil && p.Stack >= h.blinds.Big {
			n++
		}
	}
	return n >= 2
}

// Start signals the lobby to begin a new hand.
func (h *Hand) Start() error {
	if h.phase != PhaseLobby {
		return gameerr.NewUserError(gameerr.InvalidState, "not in lobby")
	}
	if !h.ReadyToStart() {
		return gameerr.NewUserError(gameerr.InvalidAction, "not enough funded players")
	}
	h.phase = PhaseSeatPlayers
	return nil
}

// Advance drives every phase that requires no external input as far as it
// will go, stopping at Lobby (waiting for Start) or TakeAction (waiting for
// a player action). It is safe and idempotent to call repeatedly; the
// table actor calls it once per tick and once after every accepted action.
func (h *Hand) Advance() {
	for {
		switch h.phase {
		case PhaseLobby:
			return
		case PhaseSeatPlayers:
			h.doSeatPlayers()
		case PhaseMoveButton:
			h.doMoveButton()
		case PhaseCollectBlinds:
			h.doCollectBlinds()
		case PhaseDeal:
			h.doDeal()
		case PhaseTakeAction:
			return
		case PhaseFlop:
			h.doCommunityStreet(streetFlop)
		case PhaseTurn:
			h.doCommunityStreet(streetTurn)
		case PhaseRiver:
			h.doCommunityStreet(streetRiver)
		case PhaseShowHands:
			h.doShowHands()
		case PhaseDistributePot:
			h.doDistributePot()
		case PhaseRemovePlayers:
			h.doRemovePlayers()
		case PhaseUpdateBlinds:
			h.doUpdateBlinds()
		case PhaseBootPlayers:
			h.doBootPlayers()
		default:
			return
		}
	}
}

func (h *Hand) setPhase(p Phase) {
	h.emit(Event{Kind: EventPhaseExited, Phase: h.phase})
	h.phase = p
	h.emit(Event{Kind: EventPhaseEntered, Phase: p})
}

func (h *Hand) doSeatPlayers() {
	h.deck = card.NewShuffledDeck(h.rngSys, h.audit)
	h.board = nil
	h.totalCommitted = map[int]uint64{}
	for _, p := range h.seats {
		if p == nil {
			continue
		}
		p.Hole = nil
		p.Committed = 0
		if p.State != player.SitOut {
			p.State = player.Wait
		}
	}
	h.setPhase(PhaseMoveButton)
}

func (h *Hand) liveSeatIndices() []int {
	out := make([]int, 0, len(h.seats))
	for i, p := range h.seats {
		if p != nil && p.State != player.SitOut {
			out = append(out, i)
		}
	}
	return out
}

func (h *Hand) doMoveButton() {
	live := h.liveSeatIndices()
	if len(live) < 2 {
		h.setPhase(PhaseLobby)
		return
	}
	n := len(h.seats)
	if h.handsPlayed == 0 {
		h.button = live[0]
	} else {
		h.button = player.NextSeatClockwise(h.button, n, func(s int) bool {
			return h.seats[s] == nil || h.seats[s].State == player.SitOut
		})
	}
	skipEmptyOrSitOut := func(s int) bool {
		return h.seats[s] == nil || h.seats[s].State == player.SitOut
	}
	if len(live) == 2 {
		// Heads-up is a special case: the button itself posts the small
		// blind and acts first preflop, last on every later street.
		h.smallBlindSeat = h.button
		h.bigBlindSeat = player.NextSeatClockwise(h.button, n, skipEmptyOrSitOut)
	} else {
		h.smallBlindSeat = player.NextSeatClockwise(h.button, n, skipEmptyOrSitOut)
		h.bigBlindSeat = player.NextSeatClockwise(h.smallBlindSeat, n, skipEmptyOrSitOut)
	}
	h.emit(Event{Kind: EventButtonMoved, Seat: h.button})
	h.setPhase(PhaseCollectBlinds)
}

func (h *Hand) doCollectBlinds() {
	h.postBlind(h.smallBlindSeat, h.blinds.Small, player.SmallBlind)
	h.postBlind(h.bigBlindSeat, h.blinds.Big, player.BigBlind)
	h.currentBet = h.blinds.Big
	h.minRaise = h.blinds.Big
	h.resetRoundActedFlags()
	h.setPhase(PhaseDeal)
}

func (h *Hand) postBlind(seat int, amount uint64, state player.State) {
	p := h.seats[seat]
	if p == nil {
		log.Printf("CRITICAL hsm: blind seat %d empty, state inconsistent", seat)
		return
	}
	debit := amount
	if debit > p.Stack {
		debit = p.Stack
		state = player.AllIn
	}
	p.Stack -= debit
	p.Committed += debit
	p.State = state
	h.emit(Event{Kind: EventBlindPosted, Seat: seat, Amount: debit})
	if state == player.AllIn {
		h.emit(Event{Kind: EventAllIn, Seat: seat})
	}
}

func (h *Hand) doDeal() {
	n := len(h.seats)
	for i := 0; i < n; i++ {
		seat := (h.button + 1 + i) % n
		p := h.seats[seat]
		if p == nil || p.State == player.SitOut || p.Folded() {
			continue
		}
		p.Hole = h.deck.DealN(2)
		h.emit(Event{Kind: EventCardDealt, Seat: seat, Amount: 2})
	}
	h.street = streetPreflop
	h.actionOn = player.NextSeatClockwise(h.bigBlindSeat, n, func(s int) bool {
		return h.seats[s] == nil || h.seats[s].Folded() || h.seats[s].State == player.SitOut
	})
	h.roundOpeningSeat = h.actionOn
	h.setPhase(PhaseTakeAction)
}

func (h *Hand) resetRoundActedFlags() {
	h.actedSinceLastRaise = map[int]bool{}
}

// nonFoldedNonSitoutSeats returns seats still live in the hand (may be
// AllIn), in seat order.
func (h *Hand) nonFoldedNonSitoutSeats() []int {
	out := make([]int, 0, len(h.seats))
	for i, p := range h.seats {
		if p != nil && !p.Folded() && p.State != player.SitOut {
			out = append(out, i)
		}
	}
	return out
}

func (h *Hand) canActSeats() []int {
	out := make([]int, 0, len(h.seats))
	for _, s := range h.nonFoldedNonSitoutSeats() {
		if !h.seats[s].IsAllIn() {
			out = append(out, s)
		}
	}
	return out
}

// SubmitAction applies a client action for the current action-on seat.
func (h *Hand) SubmitAction(user string, action Action) error {
	if h.phase != PhaseTakeAction {
		return gameerr.NewUserError(gameerr.InvalidState, "not taking actions")
	}
	p := h.seats[h.actionOn]
	if p == nil || p.User != user {
		return gameerr.NewUserError(gameerr.NotYourTurn, user)
	}
	if err := h.applyAction(p, action); err != nil {
		return err
	}
	h.advanceActionOrCloseRound()
	h.Advance()
	return nil
}

func (h *Hand) applyAction(p *player.Player, action Action) error {
	switch action.Kind {
	case ActionFold:
		p.State = player.Fold
		h.actedSinceLastRaise[p.Seat] = true
		h.emit(Event{Kind: EventFold, Seat: p.Seat})
		return nil
	case ActionCheck:
		if p.Committed != h.currentBet {
			return gameerr.NewUserError(gameerr.InvalidAction, "cannot check facing a bet")
		}
		p.State = player.Check
		h.actedSinceLastRaise[p.Seat] = true
		return nil
	case ActionCall:
		if h.currentBet <= p.Committed {
			return gameerr.NewUserError(gameerr.InvalidAction, "nothing to call")
		}
		delta := h.currentBet - p.Committed
		debit := delta
		if debit > p.Stack {
			debit = p.Stack
		}
		p.Stack -= debit
		p.Committed += debit
		if debit < delta {
			p.State = player.AllIn
			h.emit(Event{Kind: EventAllIn, Seat: p.Seat})
		} else {
			p.State = player.Call
		}
		h.actedSinceLastRaise[p.Seat] = true
		h.emit(Event{Kind: EventBet, Seat: p.Seat, Amount: debit})
		return nil
	case ActionRaise:
		return h.applyRaise(p, action.Amount)
	case ActionAllIn:
		avail := p.Stack + p.Committed
		if avail <= h.currentBet {
			return h.applyAction(p, Action{Kind: ActionCall})
		}
		return h.applyRaise(p, avail)
	default:
		return gameerr.NewUserError(gameerr.InvalidAction, string(action.Kind))
	}
}

func (h *Hand) applyRaise(p *player.Player, raiseTo uint64) error {
	avail := p.Stack + p.Committed
	if raiseTo > avail {
		raiseTo = avail
	}
	if raiseTo <= h.currentBet {
		return gameerr.NewUserError(gameerr.InvalidAction, "raise must exceed current bet")
	}
	fullRaise := raiseTo >= h.currentBet+h.minRaise
	if !fullRaise && raiseTo != avail {
		return gameerr.NewUserError(gameerr.InvalidAction, "raise below minimum")
	}
	increment := raiseTo - h.currentBet
	debit := raiseTo - p.Committed
	p.Stack -= debit
	p.Committed = raiseTo

	if raiseTo == avail {
		p.State = player.AllIn
		h.emit(Event{Kind: EventAllIn, Seat: p.Seat})
	} else {
		p.State = player.Raise
	}
	h.emit(Event{Kind: EventBet, Seat: p.Seat, Amount: debit})

	// currentBet always rises to the new committed amount so that seats who
	// already matched the old bet are correctly shown as owing more, even
	// when the raise is a short all-in (spec §4.4: roundClosed compares
	// Committed against currentBet, so leaving currentBet stale here would
	// let the round close before those seats call the true amount).
	h.currentBet = raiseTo
	if fullRaise {
		h.minRaise = increment
		h.resetRoundActedFlags()
	}
	// A player going all-in for less than a full raise does not re-open
	// action for players who already acted (spec §4.4); only reset flags
	// above, for full raises.
	h.actedSinceLastRaise[p.Seat] = true
	return nil
}

func (h *Hand) advanceActionOrCloseRound() {
	live := h.nonFoldedNonSitoutSeats()
	if len(live) <= 1 {
		h.closeRound(true)
		return
	}
	if h.roundClosed() {
		h.closeRound(false)
		return
	}
	n := len(h.seats)
	h.actionOn = player.NextSeatClockwise(h.actionOn, n, func(s int) bool {
		return h.seats[s] == nil || h.seats[s].Folded() || h.seats[s].State == player.SitOut || h.seats[s].IsAllIn()
	})
	if h.actionOn == -1 {
		// Every remaining live seat is all-in; no one left to act.
		h.closeRound(false)
	}
}

// roundClosed implements the exact round-close rule of spec §4.4: every
// non-folded, non-AllIn seat has committed == currentBet and has acted
// since the last raise (this single mechanism also implements the BB
// option decided in DESIGN.md, since posting a blind does not count as
// having acted).
func (h *Hand) roundClosed() bool {
	for _, s := range h.canActSeats() {
		p := h.seats[s]
		if p.Committed != h.currentBet || !h.actedSinceLastRaise[s] {
			return false
		}
	}
	return true
}

func (h *Hand) closeRound(singleWinner bool) {
	for _, p := range h.seats {
		if p == nil {
			continue
		}
		h.totalCommitted[p.Seat] += p.Committed
		p.Committed = 0
	}
	h.currentBet = 0
	h.minRaise = h.blinds.Big
	h.resetRoundActedFlags()

	if singleWinner {
		h.setPhase(PhaseShowHands)
		return
	}

	canAct := h.canActSeats()
	if len(canAct) <= 1 {
		// Early showdown: deal remaining streets with no further betting.
		for h.street < streetRiver {
			h.street++
			h.burnAndDeal(h.street)
		}
		h.setPhase(PhaseShowHands)
		return
	}

	switch h.street {
	case streetPreflop:
		h.setPhase(PhaseFlop)
	case streetFlop:
		h.setPhase(PhaseTurn)
	case streetTurn:
		h.setPhase(PhaseRiver)
	case streetRiver:
		h.setPhase(PhaseShowHands)
	}
}

func (h *Hand) doCommunityStreet(st street) {
	h.street = st
	h.burnAndDeal(st)
	h.startBettingRound()
	h.setPhase(PhaseTakeAction)
}

func (h *Hand) burnAndDeal(st street) {
	h.deck.DealCard() // burn
	var n int
	switch st {
	case streetFlop:
		n = 3
	default:
		n = 1
	}
	dealt := h.deck.DealN(n)
	h.board = append(h.board, dealt...)
	h.emit(Event{Kind: EventCardDealt, Amount: uint64(n)})
}

func (h *Hand) startBettingRound() {
	n := len(h.seats)
	h.actionOn = player.NextSeatClockwise(h.button, n, func(s int) bool {
		return h.seats[s] == nil || h.seats[s].Folded() || h.seats[s].State == player.SitOut || h.seats[s].IsAllIn()
	})
	h.roundOpeningSeat = h.actionOn
}

func (h *Hand) doShowHands() {
	// Folded players' hole cards are never revealed, per DESIGN.md.
	h.setPhase(PhaseDistributePot)
}

func (h *Hand) doDistributePot() {
	contributions := make([]pot.Contribution, 0, len(h.seats))
	for _, p := range h.seats {
		if p == nil {
			continue
		}
		contributions = append(contributions, pot.Contribution{
			Seat:      p.Seat,
			Committed: h.totalCommitted[p.Seat],
			Folded:    p.Folded(),
		})
	}
	subPots := pot.BuildSubPots(contributions)
	seatOrder := player.ClockwiseFromButton(h.button, len(h.seats))

	h.lastAwards = nil
	for _, sp := range subPots {
		if len(sp.Eligible) == 0 || sp.Amount == 0 {
			continue
		}
		winners := h.winnersOf(sp.Eligible)
		awards := pot.Distribute(sp.Amount, winners, seatOrder)
		for _, a := range awards {
			h.seats[a.Seat].Stack += a.Amount
			h.emit(Event{Kind: EventPotAwarded, Seat: a.Seat, Amount: a.Amount})
		}
		h.lastAwards = append(h.lastAwards, awards...)
	}
	h.setPhase(PhaseRemovePlayers)
}

// winnersOf evaluates every eligible seat's best hand and returns the
// tied-for-best subset, by seat index within eligible.
func (h *Hand) winnersOf(eligible []int) []int {
	if len(eligible) == 1 {
		return eligible
	}
	hands := make([]eval.Hand, len(eligible))
	for i, seat := range eligible {
		p := h.seats[seat]
		cards := append(append([]card.Card{}, p.Hole...), h.board...)
		hands[i] = eval.Evaluate(cards)
	}
	winnerIdx := eval.PickWinners(hands)
	out := make([]int, len(winnerIdx))
	for i, idx := range winnerIdx {
		out[i] = eligible[idx]
	}
	return out
}

// LastAwards exposes the most recent DistributePot result, for tests and
// analytics mirroring.
func (h *Hand) LastAwards() []pot.Award { return h.lastAwards }

func (h *Hand) doRemovePlayers() {
	for i, p := range h.seats {
		if p == nil {
			continue
		}
		if p.Stack == 0 {
			h.emit(Event{Kind: EventPlayerEliminated, Seat: i, User: p.User})
			h.seats[i] = nil
			continue
		}
		if p.State == player.SitOut {
			h.seats[i] = nil
			continue
		}
		if p.State != player.SitOut {
			p.State = player.Wait
		}
		p.Hole = nil
	}
	h.board = nil
	h.setPhase(PhaseUpdateBlinds)
}

func (h *Hand) doUpdateBlinds() {
	h.handsPlayed++
	if h.settings.Schedule != nil {
		next := h.settings.Schedule.NextBlinds(h.handsPlayed, h.blinds)
		if next != h.blinds {
			h.blinds = next
			h.emit(Event{Kind: EventBlindsUpdated, Amount: h.blinds.Big})
		}
	}
	h.setPhase(PhaseBootPlayers)
}

func (h *Hand) doBootPlayers() {
	for seat, voters := range h.kickVotes {
		p := h.seats[seat]
		if p == nil {
			continue
		}
		threshold := (h.seatedCount() / 2) + 1
		if len(voters) >= threshold {
			h.seats[seat] = nil
			h.emit(Event{Kind: EventPlayerEliminated, Seat: seat, User: p.User})
		}
	}
	h.kickVotes = map[int]map[string]bool{}
	h.setPhase(PhaseLobby)
}

// Vote records a kick vote against target from voter, applied at BootPlayers.
func (h *Hand) Vote(voter, target string) error {
	targetSeat := -1
	for i, p := range h.seats {
		if p != nil && p.User == target {
			targetSeat = i
		}
	}
	if targetSeat == -1 {
		return gameerr.NewUserError(gameerr.NotAtTable, target)
	}
	if h.kickVotes[targetSeat] == nil {
		h.kickVotes[targetSeat] = map[string]bool{}
	}
	h.kickVotes[targetSeat][voter] = true
	return nil
}

// Snapshot-facing accessors used by internal/view.

func (h *Hand) Seats() []*player.Player { return h.seats }
func (h *Hand) Board() []card.Card      { return h.board }
func (h *Hand) Blinds() Blinds          { return h.blinds }
func (h *Hand) ActionOn() int           { return h.actionOn }
func (h *Hand) Button() int             { return h.button }
func (h *Hand) CurrentBet() uint64      { return h.currentBet }
func (h *Hand) PotTotal() uint64 {
	var total uint64
	for _, p := range h.seats {
		if p != nil {
			total += p.Committed
		}
	}
	for _, c := range h.totalCommitted {
		total += c
	}
	return total
}
