// Package registry implements the table registry (C8): it owns every live
// table actor, routes messages to them, and maintains a player-count cache
// so lobby listings never need the N+1 query-every-actor pattern.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"holdem-core/internal/events"
	"holdem-core/internal/gameerr"
	"holdem-core/internal/hsm"
	"holdem-core/internal/metrics"
	"holdem-core/internal/table"
	"holdem-core/internal/view"
	"holdem-core/internal/wallet"
	"holdem-core/pkg/rng"
)

const maxTablesPractical = 23

// Info is the lobby-facing metadata for one table, as returned by
// ListTables: config plus the (possibly one-update-stale) cached player
// count, never a live actor query.
type Info struct {
	ID           string
	Capacity     int
	PlayerCount  int
}

type handle struct {
	actor    *table.Table
	cancel   context.CancelFunc
	capacity int
}

// Registry owns the tables map and the player-count cache behind a single
// RWMutex: reads (routing, listing) dominate writes (create/close/update),
// matching spec §5's "Registry lock -> Actor message-send, never reversed"
// lock-ordering rule — callers must never hold an actor-side lock while
// acquiring the registry's.
type Registry struct {
	mu      sync.RWMutex
	tables  map[string]*handle
	counts  map[string]int
	nextID  int

	wallet    wallet.Bridge
	publisher events.Publisher
	rngSys    *rng.System
	audit     *rng.AuditLogger
	sink      func(tableID string, views map[string]view.View)
}

// Deps bundles the shared collaborators every table actor this registry
// creates will be wired with.
type Deps struct {
	Wallet    wallet.Bridge
	Publisher events.Publisher
	RNG       *rng.System
	Audit     *rng.AuditLogger
	Sink      func(tableID string, views map[string]view.View)
}

func New(deps Deps) *Registry {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Registry{
		tables:    map[string]*handle{},
		counts:    map[string]int{},
		wallet:    deps.Wallet,
		publisher: publisher,
		rngSys:    deps.RNG,
		audit:     deps.Audit,
		sink:      deps.Sink,
	}
}

// CreateTable spawns a new table actor with the given settings, records its
// handle, and seeds its player-count cache entry at 0.
func (r *Registry) CreateTable(ctx context.Context, settings hsm.Settings, stepTimeout, actionTimeout, topUpCooldown time.Duration) (string, error) {
	r.mu.Lock()
	if len(r.tables) >= maxTablesPractical {
		r.mu.Unlock()
		return "", gameerr.NewUserError(gameerr.TableFull, "registry at capacity")
	}
	r.nextID++
	id := fmt.Sprintf("table-%d", r.nextID)
	r.mu.Unlock()

	r.spawn(ctx, id, settings, stepTimeout, actionTimeout, topUpCooldown)
	return id, nil
}

func (r *Registry) spawn(ctx context.Context, id string, settings hsm.Settings, stepTimeout, actionTimeout, topUpCooldown time.Duration) {
	hand := hsm.New(settings, r.rngSys, r.audit)
	cfg := table.Config{
		ID:                  id,
		Settings:            settings,
		StepTimeout:         stepTimeout,
		ActionTimeout:       actionTimeout,
		TopUpCooldown:       topUpCooldown,
		ChipCap:             settings.ChipCap,
		Wallet:              r.wallet,
		Publisher:           r.publisher,
		OnPlayerCountChange: r.UpdatePlayerCount,
		Sink:                r.sink,
	}
	actor := table.New(cfg, hand)
	actorCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.tables[id] = &handle{actor: actor, cancel: cancel, capacity: settings.Capacity}
	r.counts[id] = 0
	metrics.SetPlayerCountCacheSize(len(r.counts))
	r.mu.Unlock()

	go actor.Run(actorCtx)
}

// GetHandle returns the actor for message routing, or an error if unknown.
func (r *Registry) GetHandle(tableID string) (*table.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tables[tableID]
	if !ok {
		return nil, gameerr.NewUserError(gameerr.NotAtTable, tableID)
	}
	return h.actor, nil
}

// ListTables returns every table's cached metadata; this is the single
// O(N) synchronous lookup spec §4.7 requires — it must never message N
// actors to total their player counts.
func (r *Registry) ListTables() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.tables))
	for id, h := range r.tables {
		out = append(out, Info{ID: id, Capacity: h.capacity, PlayerCount: r.counts[id]})
	}
	return out
}

// UpdatePlayerCount is the public write hook a table actor calls after
// every successful join/leave.
func (r *Registry) UpdatePlayerCount(tableID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[tableID]; !ok {
		return
	}
	r.counts[tableID] = count
}

// CloseTable sends CloseTable to the actor, awaits its shutdown, then
// removes it from the registry and the cache.
func (r *Registry) CloseTable(ctx context.Context, tableID string) error {
	r.mu.RLock()
	h, ok := r.tables[tableID]
	r.mu.RUnlock()
	if !ok {
		return gameerr.NewUserError(gameerr.NotAtTable, tableID)
	}

	if _, err := h.actor.Close(ctx); err != nil {
		return err
	}
	h.cancel()

	r.mu.Lock()
	delete(r.tables, tableID)
	delete(r.counts, tableID)
	metrics.SetPlayerCountCacheSize(len(r.counts))
	r.mu.Unlock()
	return nil
}
