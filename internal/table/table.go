// Package table implements the per-table actor: a single-threaded
// cooperative event loop that owns one hand's mutable state, serializes
// every mutation against it, integrates the wallet bridge, and drives the
// periodic tick. This is C7 of the spec, grounded on the reference
// server's Table.gameLoop select-loop shape but rebuilt around a message
// envelope with reply channels instead of a single actions channel, since
// every message here needs an answer, not just Action.
package table

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"holdem-core/internal/events"
	"holdem-core/internal/gameerr"
	"holdem-core/internal/hsm"
	"holdem-core/internal/metrics"
	"holdem-core/internal/view"
	"holdem-core/internal/wallet"
)

const topUpMaxAmount = uint64(math.MaxUint32)

// defaultInboxCapacity matches spec's stated per-actor inbox default of 32
// messages; Config.InboxCapacity overrides it for load testing.
const defaultInboxCapacity = 32

// Config configures one Table actor at construction time.
type Config struct {
	ID            string
	Settings      hsm.Settings
	StepTimeout   time.Duration
	ActionTimeout time.Duration
	TopUpCooldown time.Duration
	ChipCap       uint64

	// InboxCapacity overrides the default bounded-inbox size (32 per spec);
	// zero means use the default.
	InboxCapacity int

	Wallet    wallet.Bridge
	Publisher events.Publisher // nil is replaced with events.NoopPublisher

	// OnPlayerCountChange is the Registry's update_player_count hook,
	// called after every successful join/leave.
	OnPlayerCountChange func(tableID string, count int)

	// Sink receives the latest per-user views after every observable
	// change; nil means no outbound push (tests, headless runs).
	Sink func(tableID string, views map[string]view.View)
}

type waitlistEntry struct {
	user           string
	buyIn          uint64
	idempotencyKey string
}

// Table is one table actor. All fields below inbox/stop are owned
// exclusively by the actor's own goroutine once Run starts; nothing else
// may touch them.
type Table struct {
	cfg  Config
	hand *hsm.Hand

	inbox chan any
	stop  chan struct{}
	done  chan struct{}

	spectators map[string]bool
	waitlist   []waitlistEntry
	lastTopUp  map[string]time.Time
	actionSince time.Time
	lastDroppedEvents int

	mu     sync.RWMutex // guards closed only, read cross-goroutine
	closed bool
}

// New constructs a table actor wrapping an already-built Hand. Call Run to
// start its loop.
func New(cfg Config, hand *hsm.Hand) *Table {
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}
	capacity := cfg.InboxCapacity
	if capacity <= 0 {
		capacity = defaultInboxCapacity
	}
	return &Table{
		cfg:        cfg,
		hand:       hand,
		inbox:      make(chan any, capacity),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		spectators: map[string]bool{},
		lastTopUp:  map[string]time.Time{},
	}
}

// Run starts the actor's event loop in the caller's goroutine; callers run
// it via `go t.Run(ctx)`.
func (t *Table) Run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.cfg.StepTimeout)
	defer ticker.Stop()

	for {
		metrics.SetInboxDepth(t.cfg.ID, len(t.inbox))
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case msg := <-t.inbox:
			start := time.Now()
			t.handle(ctx, msg)
			metrics.RecordActionLatency(messageType(msg), time.Since(start).Seconds())
		case <-ticker.C:
			start := time.Now()
			t.tick(ctx)
			metrics.RecordTickDuration(t.cfg.ID, time.Since(start).Seconds())
		}
	}
}

func messageType(msg any) string {
	switch msg.(type) {
	case joinMsg:
		return "join"
	case leaveMsg:
		return "leave"
	case actionMsg:
		return "action"
	case spectateMsg:
		return "spectate"
	case waitlistMsg:
		return "waitlist"
	case voteMsg:
		return "vote"
	case topUpMsg:
		return "top_up"
	case getStateMsg:
		return "get_state"
	case closeMsg:
		return "close"
	default:
		return "unknown"
	}
}

// send delivers a message and blocks for its reply, the pattern every
// public method below uses to cross into the actor's goroutine.
func (t *Table) send(ctx context.Context, msg any, reply chan Reply) (Reply, error) {
	select {
	case t.inbox <- msg:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-t.stop:
		return Reply{}, gameerr.NewInternalError(gameerr.SendFailed, fmt.Errorf("table %s closed", t.cfg.ID))
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (t *Table) JoinTable(ctx context.Context, user string, buyIn uint64, idempotencyKey string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, joinMsg{user: user, buyIn: buyIn, idempotencyKey: idempotencyKey, reply: reply}, reply)
}

func (t *Table) LeaveTable(ctx context.Context, user string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, leaveMsg{user: user, reply: reply}, reply)
}

func (t *Table) SubmitAction(ctx context.Context, user string, action hsm.Action) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, actionMsg{user: user, action: action, reply: reply}, reply)
}

func (t *Table) Spectate(ctx context.Context, user string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, spectateMsg{user: user, reply: reply}, reply)
}

func (t *Table) Waitlist(ctx context.Context, user string, buyIn uint64, idempotencyKey string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, waitlistMsg{user: user, reply: reply}, reply)
}

func (t *Table) Vote(ctx context.Context, voter, target string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, voteMsg{user: voter, subject: target, reply: reply}, reply)
}

func (t *Table) TopUp(ctx context.Context, user string, amount uint64, idempotencyKey string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, topUpMsg{user: user, amount: amount, idempotencyKey: idempotencyKey, reply: reply}, reply)
}

func (t *Table) GetState(ctx context.Context, user string) (Reply, error) {
	reply := make(chan Reply, 1)
	return t.send(ctx, getStateMsg{user: user, reply: reply}, reply)
}

// Close sends CloseTable and waits for the actor's loop to exit.
func (t *Table) Close(ctx context.Context) (Reply, error) {
	reply := make(chan Reply, 1)
	r, err := t.send(ctx, closeMsg{reply: reply}, reply)
	<-t.done
	return r, err
}

// IsClosed reports whether CloseTable has completed; safe for concurrent
// callers.
func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *Table) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case joinMsg:
		m.reply <- t.handleJoin(ctx, m)
	case leaveMsg:
		m.reply <- t.handleLeave(ctx, m)
	case actionMsg:
		m.reply <- t.handleAction(m)
	case spectateMsg:
		t.spectators[m.user] = true
		m.reply <- Reply{View: t.snapshotFor(m.user)}
	case waitlistMsg:
		m.reply <- t.handleWaitlist(m)
	case voteMsg:
		err := t.hand.Vote(m.user, m.subject)
		m.reply <- Reply{Err: err}
		t.pushViews()
	case topUpMsg:
		m.reply <- t.handleTopUp(ctx, m)
	case getStateMsg:
		m.reply <- Reply{View: t.snapshotFor(m.user)}
	case closeMsg:
		m.reply <- t.handleClose(ctx)
	}
}

func (t *Table) minBuyIn() uint64 {
	return t.cfg.Settings.MinBuyInBB * t.hand.Blinds().Big
}

func (t *Table) maxBuyIn() uint64 {
	return t.cfg.Settings.MaxBuyInBB * t.hand.Blinds().Big
}

func (t *Table) handleJoin(ctx context.Context, m joinMsg) Reply {
	if m.buyIn < t.hand.Blinds().Big || m.buyIn < t.minBuyIn() || m.buyIn > t.maxBuyIn() {
		return Reply{Err: gameerr.NewUserError(gameerr.BadBuyIn, "")}
	}
	result, err := t.cfg.Wallet.TransferToEscrow(ctx, m.user, t.cfg.ID, m.buyIn, m.idempotencyKey)
	if err != nil {
		return Reply{Err: err}
	}
	if result.Replayed {
		return Reply{View: t.snapshotFor(m.user)}
	}
	seat, err := t.hand.Seat(m.user, m.buyIn)
	if err != nil {
		rollbackKey := wallet.RollbackKey(m.idempotencyKey)
		if _, rbErr := t.cfg.Wallet.TransferFromEscrow(ctx, m.user, t.cfg.ID, m.buyIn, rollbackKey); rbErr != nil {
			log.Printf("CRITICAL table %s: rollback failed for user %s key %s: %v", t.cfg.ID, m.user, rollbackKey, rbErr)
		}
		return Reply{Err: err}
	}
	_ = seat
	t.reportPlayerCount()
	t.hand.Advance()
	t.pushViews()
	return Reply{View: t.snapshotFor(m.user)}
}

func (t *Table) handleLeave(ctx context.Context, m leaveMsg) Reply {
	if t.spectators[m.user] {
		delete(t.spectators, m.user)
		return Reply{}
	}
	for i, w := range t.waitlist {
		if w.user == m.user {
			t.waitlist = append(t.waitlist[:i], t.waitlist[i+1:]...)
			return Reply{}
		}
	}
	stack, err := t.hand.Unseat(m.user)
	if err != nil {
		return Reply{Err: err}
	}
	if stack > 0 {
		key := wallet.NewIdempotencyKey("leave", t.cfg.ID, m.user, time.Now())
		if _, err := t.cfg.Wallet.TransferFromEscrow(ctx, m.user, t.cfg.ID, stack, key); err != nil {
			return Reply{Err: err}
		}
	}
	t.reportPlayerCount()
	t.pushViews()
	return Reply{}
}

func (t *Table) handleAction(m actionMsg) Reply {
	if err := t.hand.SubmitAction(m.user, m.action); err != nil {
		return Reply{Err: err}
	}
	t.pushViews()
	t.actionSince = time.Now()
	return Reply{View: t.snapshotFor(m.user)}
}

func (t *Table) handleWaitlist(m waitlistMsg) Reply {
	for _, w := range t.waitlist {
		if w.user == m.user {
			return Reply{Err: gameerr.NewUserError(gameerr.AlreadyJoined, m.user)}
		}
	}
	t.waitlist = append(t.waitlist, waitlistEntry{user: m.user, buyIn: t.minBuyIn()})
	return Reply{}
}

func (t *Table) handleTopUp(ctx context.Context, m topUpMsg) Reply {
	if m.amount == 0 || m.amount > topUpMaxAmount {
		return Reply{Err: gameerr.NewUserError(gameerr.BadBuyIn, "")}
	}
	if last, ok := t.lastTopUp[m.user]; ok && time.Since(last) < t.cfg.TopUpCooldown {
		return Reply{Err: gameerr.NewUserError(gameerr.InvalidAction, "top_up_cooldown")}
	}
	var seat *int
	for _, p := range t.hand.Seats() {
		if p != nil && p.User == m.user {
			s := p.Seat
			seat = &s
			break
		}
	}
	if seat == nil {
		return Reply{Err: gameerr.NewUserError(gameerr.NotAtTable, m.user)}
	}
	current := t.hand.Seats()[*seat].Stack
	if current+m.amount > t.cfg.ChipCap {
		return Reply{Err: gameerr.NewUserError(gameerr.BadBuyIn, "chip_cap")}
	}
	result, err := t.cfg.Wallet.TopUp(ctx, m.user, t.cfg.ID, m.amount, m.idempotencyKey)
	if err != nil {
		return Reply{Err: err}
	}
	if !result.Replayed {
		t.hand.Seats()[*seat].Stack += m.amount
		t.lastTopUp[m.user] = time.Now()
	}
	t.pushViews()
	return Reply{View: t.snapshotFor(m.user)}
}

func (t *Table) handleClose(ctx context.Context) Reply {
	for _, p := range t.hand.Seats() {
		if p == nil || p.Stack == 0 {
			continue
		}
		key := wallet.NewIdempotencyKey("close", t.cfg.ID, p.User, time.Now())
		if _, err := t.cfg.Wallet.TransferFromEscrow(ctx, p.User, t.cfg.ID, p.Stack, key); err != nil {
			log.Printf("CRITICAL table %s: close-drain failed for user %s: %v", t.cfg.ID, p.User, err)
		}
	}
	t.pushViews()
	if err := t.cfg.Publisher.Close(); err != nil {
		log.Printf("WARN table %s: publisher close: %v", t.cfg.ID, err)
	}
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	close(t.stop)
	return Reply{}
}

// tick drives the hand as far as it will go, checks the action timeout,
// and promotes a waitlisted user into any seat that opened up.
func (t *Table) tick(ctx context.Context) {
	if t.hand.Phase() == hsm.PhaseLobby && t.hand.ReadyToStart() {
		if err := t.hand.Start(); err != nil {
			log.Printf("WARN table %s: start: %v", t.cfg.ID, err)
		}
		t.actionSince = time.Now()
	}
	t.hand.Advance()

	if t.hand.Phase() == hsm.PhaseTakeAction && !t.actionSince.IsZero() &&
		time.Since(t.actionSince) > t.cfg.ActionTimeout {
		t.autoActTimedOutSeat()
	}

	t.promoteWaitlist(ctx)
	t.pushViews()
}

func (t *Table) autoActTimedOutSeat() {
	seat := t.hand.ActionOn()
	seats := t.hand.Seats()
	if seat < 0 || seat >= len(seats) || seats[seat] == nil {
		return
	}
	user := seats[seat].User
	action := hsm.Action{Kind: hsm.ActionFold}
	if seats[seat].Committed == t.hand.CurrentBet() {
		action = hsm.Action{Kind: hsm.ActionCheck}
	}
	if err := t.hand.SubmitAction(user, action); err != nil {
		log.Printf("WARN table %s: auto-action for %s: %v", t.cfg.ID, user, err)
	}
	t.actionSince = time.Now()
}

func (t *Table) promoteWaitlist(ctx context.Context) {
	if len(t.waitlist) == 0 || t.hand.Phase() != hsm.PhaseLobby {
		return
	}
	hasOpenSeat := false
	for _, p := range t.hand.Seats() {
		if p == nil {
			hasOpenSeat = true
			break
		}
	}
	if !hasOpenSeat {
		return
	}
	next := t.waitlist[0]
	key := next.idempotencyKey
	if key == "" {
		key = wallet.NewIdempotencyKey("join", t.cfg.ID, next.user, time.Now())
	}
	reply := t.handleJoin(ctx, joinMsg{user: next.user, buyIn: next.buyIn, idempotencyKey: key})
	if reply.Err == nil {
		t.waitlist = t.waitlist[1:]
	}
}

func (t *Table) reportPlayerCount() {
	if t.cfg.OnPlayerCountChange == nil {
		return
	}
	n := 0
	for _, p := range t.hand.Seats() {
		if p != nil {
			n++
		}
	}
	t.cfg.OnPlayerCountChange(t.cfg.ID, n)
}

func (t *Table) snapshotFor(user string) *view.View {
	v := view.ProjectFor(t.hand, user)
	return &v
}

func (t *Table) pushViews() {
	t.publishEvents()
	if t.cfg.Sink == nil {
		return
	}
	spectators := make([]string, 0, len(t.spectators))
	for u := range t.spectators {
		spectators = append(spectators, u)
	}
	t.cfg.Sink(t.cfg.ID, view.ProjectAll(t.hand, spectators))
}

// publishEvents drains the hand's bounded event queue and forwards every
// entry to the configured publisher, tagging each with the table and
// current hand identifiers. A slow or unreachable publisher must never
// block the actor; events.Publisher implementations own that guarantee.
func (t *Table) publishEvents() {
	drained := t.hand.Drain()
	if len(drained) == 0 {
		return
	}
	handID := fmt.Sprintf("%s-%d", t.cfg.ID, t.hand.HandsPlayed())
	records := make([]events.Record, len(drained))
	for i, e := range drained {
		records[i] = events.Record{TableID: t.cfg.ID, HandID: handID, Event: e}
	}
	if err := t.cfg.Publisher.Publish(context.Background(), records); err != nil {
		log.Printf("WARN table %s: publish events: %v", t.cfg.ID, err)
	}
	if dropped := t.hand.DroppedEvents(); dropped > t.lastDroppedEvents {
		metrics.RecordEventDrops(t.cfg.ID, dropped-t.lastDroppedEvents)
		t.lastDroppedEvents = dropped
	}
}
