// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package teamstore is the persistent state behind the assistant: who
// is registered with which team in which role, player profiles and
// squad assignments, training sessions, and dues. It is the
// authoritative identity store the router resolves against.
//
// All state lives in one SQLite database accessed through
// lib/sqlitepool. Write paths take a savepoint so multi-statement
// updates are atomic; read paths are plain queries. Expected business
// outcomes (no such code, already registered) are sentinel errors so
// command handlers can turn them into reply text instead of
// escalating them as system failures.
package teamstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/roster-foundation/roster/lib/clock"
	"github.com/roster-foundation/roster/lib/identity"
	"github.com/roster-foundation/roster/lib/sqlitepool"
)

// Sentinel errors for expected business outcomes. Everything else a
// Store method returns is a system failure.
var (
	// ErrNotFound means the row the operation targets does not exist.
	ErrNotFound = errors.New("teamstore: not found")

	// ErrAlreadyRegistered means the sender already holds the role,
	// pending or active.
	ErrAlreadyRegistered = errors.New("teamstore: already registered")

	// ErrCodeNotFound means no pending registration matches the
	// approval code.
	ErrCodeNotFound = errors.New("teamstore: approval code not found")

	// ErrSessionCancelled means the targeted session was already
	// cancelled.
	ErrSessionCancelled = errors.New("teamstore: session already cancelled")
)

const schema = `
CREATE TABLE IF NOT EXISTS registrations (
	team         TEXT NOT NULL,
	user         TEXT NOT NULL,
	role         TEXT NOT NULL CHECK (role IN ('player', 'manager')),
	state        TEXT NOT NULL CHECK (state IN ('pending', 'active')),
	code         TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	requested_at INTEGER NOT NULL,
	decided_at   INTEGER,
	approved_by  TEXT NOT NULL DEFAULT '',
	note         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (team, user, role)
);

CREATE UNIQUE INDEX IF NOT EXISTS registrations_by_code
	ON registrations (team, code);

CREATE TABLE IF NOT EXISTS profiles (
	team         TEXT NOT NULL,
	user         TEXT NOT NULL,
	position     TEXT NOT NULL DEFAULT '',
	availability TEXT NOT NULL DEFAULT '',
	squad        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (team, user)
);

CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY,
	team       TEXT NOT NULL,
	title      TEXT NOT NULL,
	starts_at  INTEGER NOT NULL,
	created_by TEXT NOT NULL,
	cancelled  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS sessions_by_team_time
	ON sessions (team, starts_at);

CREATE TABLE IF NOT EXISTS dues (
	team      TEXT NOT NULL,
	user      TEXT NOT NULL,
	period    TEXT NOT NULL,
	paid_at   INTEGER NOT NULL,
	marked_by TEXT NOT NULL,
	PRIMARY KEY (team, user, period)
);
`

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database path. Required. ":memory:" works
	// for tests with PoolSize 1.
	Path string

	// PoolSize is passed through to the connection pool.
	PoolSize int

	// Clock supplies timestamps. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives operational messages. Defaults to no-op.
	Logger *slog.Logger
}

// Store is the SQLite-backed team state. It implements identity.Store.
// Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens the database, creating the schema if needed.
func Open(cfg Config) (*Store, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("teamstore: %w", err)
	}

	return &Store{pool: pool, clock: clk, logger: logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// withConn borrows a connection for the duration of fn.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// newApprovalCode returns a short random code like "rc-7f3a9c". Codes
// are unique per team by index; the entropy makes collisions within a
// team vanishingly rare, and the unique index catches the rest.
func newApprovalCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("teamstore: generating approval code: %w", err)
	}
	return "rc-" + hex.EncodeToString(buf), nil
}

// wrapUnlessSentinel wraps a system error with context while letting
// the package's sentinel errors through untouched, so callers can
// still match them with errors.Is without double-wrapping noise.
func wrapUnlessSentinel(operation string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrCodeNotFound),
		errors.Is(err, ErrSessionCancelled):
		return err
	default:
		return fmt.Errorf("teamstore: %s: %w", operation, err)
	}
}

// roleColumn maps a role to its stored name.
func roleColumn(role identity.Role) string {
	if role == identity.RoleManager {
		return "manager"
	}
	return "player"
}

// parseState maps a stored state name back. Unknown values surface as
// an error rather than a silent unregistered.
func parseState(raw string) (identity.State, error) {
	switch raw {
	case "pending":
		return identity.Pending, nil
	case "active":
		return identity.Active, nil
	default:
		return identity.Unregistered, fmt.Errorf("teamstore: unknown state %q", raw)
	}
}
