// Package wallet defines the Bridge interface the core depends on for
// atomic, idempotent escrow transfers, plus an idempotency-key helper and
// an in-memory reference implementation used by tests and local runs.
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"holdem-core/internal/gameerr"
)

// Bridge is the thin interface the core consumes; a PostgreSQL-backed
// adapter lives in internal/storage/postgres.
type Bridge interface {
	TransferToEscrow(ctx context.Context, user, table string, amount uint64, key string) (Result, error)
	TransferFromEscrow(ctx context.Context, user, table string, amount uint64, key string) (Result, error)
	GetEscrow(ctx context.Context, user, table string) (uint64, error)
	TopUp(ctx context.Context, user, table string, amount uint64, key string) (Result, error)
}

// Result is the outcome of a transfer call. Applied is true only for the call
// that performed the transfer. Replaying an already-applied key returns the
// original Balance with Replayed set true and Applied false, rather than an
// error.
type Result struct {
	Applied  bool
	Replayed bool
	Balance  uint64
}

// NewIdempotencyKey builds a key in the §3 format:
// {operation}:{table_id}:{user_id}:{millisecond_timestamp}:{uuid}.
func NewIdempotencyKey(operation, tableID, userID string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d:%s", operation, tableID, userID, now.UnixMilli(), uuid.NewString())
}

// RollbackKey derives a distinct key for a rollback of the given forward key,
// so a rollback is itself idempotent and never collides with its forward
// operation.
func RollbackKey(forwardKey string) string {
	return "rollback:" + forwardKey
}

// InMemory is a reference Bridge for tests and local runs: every wallet
// starts with an explicit balance, debits/credits are atomic under a single
// mutex, and idempotency keys are remembered for the process lifetime.
type InMemory struct {
	mu       sync.Mutex
	balances map[string]uint64 // user -> wallet balance
	escrows  map[string]uint64 // user|table -> escrow balance
	applied  map[string]Result
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances: map[string]uint64{},
		escrows:  map[string]uint64{},
		applied:  map[string]Result{},
	}
}

// Fund sets a user's wallet balance directly; test helper only.
func (m *InMemory) Fund(user string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[user] = amount
}

func (m *InMemory) WalletBalance(user string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[user]
}

func escrowKey(user, table string) string { return user + "|" + table }

func (m *InMemory) TransferToEscrow(_ context.Context, user, table string, amount uint64, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.applied[key]; ok {
		r.Applied = false
		r.Replayed = true
		return r, nil
	}
	if m.balances[user] < amount {
		return Result{}, gameerr.NewUserError(gameerr.InsufficientFunds, user)
	}
	m.balances[user] -= amount
	m.escrows[escrowKey(user, table)] += amount
	r := Result{Applied: true, Balance: m.balances[user]}
	m.applied[key] = r
	return r, nil
}

func (m *InMemory) TransferFromEscrow(_ context.Context, user, table string, amount uint64, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.applied[key]; ok {
		r.Applied = false
		r.Replayed = true
		return r, nil
	}
	ek := escrowKey(user, table)
	if m.escrows[ek] < amount {
		return Result{}, gameerr.NewInternalError(gameerr.WalletError, fmt.Errorf("escrow underfunded for %s", ek))
	}
	m.escrows[ek] -= amount
	m.balances[user] += amount
	r := Result{Applied: true, Balance: m.balances[user]}
	m.applied[key] = r
	return r, nil
}

func (m *InMemory) GetEscrow(_ context.Context, user, table string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrows[escrowKey(user, table)], nil
}

func (m *InMemory) TopUp(ctx context.Context, user, table string, amount uint64, key string) (Result, error) {
	return m.TransferToEscrow(ctx, user, table, amount, key)
}
