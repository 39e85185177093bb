package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is the persisted account row (spec §6.2 `users`).
type User struct {
	ID          string
	Username    string
	DisplayName string
	PasswordHash string
}

// Session is a persisted login session (spec §6.2 `sessions`).
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// UserStore is the interface the auth transport (out of core scope per
// spec §1) delegates register/login to; the core itself never calls this,
// it only depends on wallet.Bridge.
type UserStore interface {
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
}

// UserStorage implements UserStore over PostgreSQL.
type UserStorage struct {
	db *sql.DB
}

func NewUserStorage(db *sql.DB) *UserStorage {
	return &UserStorage{db: db}
}

// CreateSchema creates the users/sessions relations if absent.
func (s *UserStorage) CreateSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			display_name VARCHAR(128) NOT NULL,
			password_hash VARCHAR(256) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token VARCHAR(128) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id),
			expires_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *UserStorage) CreateUser(ctx context.Context, username, displayName, passwordHash string) (User, error) {
	u := User{ID: username, Username: username, DisplayName: displayName, PasswordHash: passwordHash}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, password_hash)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Username, u.DisplayName, u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("postgres: create user: %w", err)
	}
	return u, nil
}

func (s *UserStorage) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, password_hash FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("postgres: get user: %w", err)
	}
	return u, nil
}

func (s *UserStorage) CreateSession(ctx context.Context, session Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, session.Token, session.UserID, session.ExpiresAt)
	return err
}

func (s *UserStorage) GetSession(ctx context.Context, token string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at FROM sessions WHERE token = $1
	`, token).Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("postgres: get session: %w", err)
	}
	return sess, nil
}

var _ UserStore = (*UserStorage)(nil)
