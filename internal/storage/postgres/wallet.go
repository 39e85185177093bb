// Package postgres provides the reference WalletBridge and UserStore
// adapters over PostgreSQL (spec §6.2), grounded on the session/fingerprint
// storage idiom in postgres_sessions.go: parameterized queries,
// CREATE TABLE IF NOT EXISTS helpers, and ON CONFLICT upserts.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"holdem-core/internal/gameerr"
	"holdem-core/internal/wallet"
)

// WalletStorage implements wallet.Bridge over the schema in spec §6.2:
// wallets, wallet_entries (idempotency_key UNIQUE), table_escrows.
type WalletStorage struct {
	db *sql.DB
}

func NewWalletStorage(db *sql.DB) *WalletStorage {
	return &WalletStorage{db: db}
}

// CreateWalletTables creates the wallet/escrow/ledger relations if absent.
func (s *WalletStorage) CreateWalletTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id VARCHAR(64) PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
		);

		CREATE TABLE IF NOT EXISTS table_escrows (
			table_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			PRIMARY KEY (table_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS wallet_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			direction VARCHAR(16) NOT NULL,
			balance_after BIGINT NOT NULL,
			idempotency_key VARCHAR(256) NOT NULL UNIQUE,
			table_id VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_wallet_entries_user_id ON wallet_entries(user_id);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// replayOf looks up a previously-applied idempotency key and, if found,
// returns the original balance it produced so callers can reply without
// re-applying the transfer.
func (s *WalletStorage) replayOf(ctx context.Context, key string) (uint64, bool, error) {
	var balanceAfter int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance_after FROM wallet_entries WHERE idempotency_key = $1`, key,
	).Scan(&balanceAfter)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(balanceAfter), true, nil
}

func (s *WalletStorage) TransferToEscrow(ctx context.Context, user, table string, amount uint64, key string) (wallet.Result, error) {
	if balance, ok, err := s.replayOf(ctx, key); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	} else if ok {
		return wallet.Result{Replayed: true, Balance: balance}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.LedgerUnavailable, err)
	}
	defer tx.Rollback()

	var walletBalance int64
	// Row-level lock: two concurrent debits against the same wallet cannot
	// both read a balance that only one of them should be allowed to spend.
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, user,
	).Scan(&walletBalance)
	if err == sql.ErrNoRows {
		return wallet.Result{}, gameerr.NewUserError(gameerr.InsufficientFunds, user)
	}
	if err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}
	if uint64(walletBalance) < amount {
		return wallet.Result{}, gameerr.NewUserError(gameerr.InsufficientFunds, user)
	}

	newBalance := walletBalance - int64(amount)
	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = $1 WHERE user_id = $2`, newBalance, user); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO table_escrows (table_id, user_id, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (table_id, user_id) DO UPDATE SET balance = table_escrows.balance + EXCLUDED.balance
	`, table, user, int64(amount)); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_entries (user_id, amount, direction, balance_after, idempotency_key, table_id)
		VALUES ($1, $2, 'debit', $3, $4, $5)
	`, user, int64(amount), newBalance, key, table); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}

	if err := tx.Commit(); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.LedgerUnavailable, err)
	}
	return wallet.Result{Applied: true, Balance: uint64(newBalance)}, nil
}

func (s *WalletStorage) TransferFromEscrow(ctx context.Context, user, table string, amount uint64, key string) (wallet.Result, error) {
	if balance, ok, err := s.replayOf(ctx, key); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	} else if ok {
		return wallet.Result{Replayed: true, Balance: balance}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.LedgerUnavailable, err)
	}
	defer tx.Rollback()

	var escrowBalance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM table_escrows WHERE table_id = $1 AND user_id = $2 FOR UPDATE`, table, user,
	).Scan(&escrowBalance)
	if err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, fmt.Errorf("escrow read for %s/%s: %w", table, user, err))
	}
	if uint64(escrowBalance) < amount {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.StateInconsistent, fmt.Errorf("escrow underfunded for %s/%s", table, user))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE table_escrows SET balance = balance - $1 WHERE table_id = $2 AND user_id = $3
	`, int64(amount), table, user); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}

	var newWalletBalance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE wallets SET balance = balance + $1 WHERE user_id = $2 RETURNING balance
	`, int64(amount), user).Scan(&newWalletBalance)
	if err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_entries (user_id, amount, direction, balance_after, idempotency_key, table_id)
		VALUES ($1, $2, 'credit', $3, $4, $5)
	`, user, int64(amount), newWalletBalance, key, table); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.WalletError, err)
	}

	if err := tx.Commit(); err != nil {
		return wallet.Result{}, gameerr.NewInternalError(gameerr.LedgerUnavailable, err)
	}
	return wallet.Result{Applied: true, Balance: uint64(newWalletBalance)}, nil
}

func (s *WalletStorage) GetEscrow(ctx context.Context, user, table string) (uint64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM table_escrows WHERE table_id = $1 AND user_id = $2`, table, user,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, gameerr.NewInternalError(gameerr.WalletError, err)
	}
	return uint64(balance), nil
}

func (s *WalletStorage) TopUp(ctx context.Context, user, table string, amount uint64, key string) (wallet.Result, error) {
	return s.TransferToEscrow(ctx, user, table, amount, key)
}

var _ wallet.Bridge = (*WalletStorage)(nil)
