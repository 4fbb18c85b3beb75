// Package sqlite is the default store: a single-file database via the
// pure-Go modernc driver. It implements domain.Store, including the
// atomic-unit primitive every ledger operation runs inside and the
// uniqueness constraint that makes reward grants idempotent.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kaizen-app/kaizen/internal/domain"
)

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			balance    TEXT NOT NULL DEFAULT '0',
			week_start TEXT NOT NULL DEFAULT 'SUNDAY',
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS measures (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			unit       TEXT NOT NULL,
			icon       TEXT NOT NULL DEFAULT 'Target',
			color      TEXT NOT NULL DEFAULT 'emerald',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measures_user ON measures(user_id)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id            TEXT PRIMARY KEY,
			measure_id    TEXT NOT NULL REFERENCES measures(id) ON DELETE CASCADE,
			timeframe     TEXT NOT NULL,
			type          TEXT NOT NULL,
			target_value  REAL NOT NULL,
			reward_amount TEXT NOT NULL,
			min_per_entry REAL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_measure ON goals(measure_id)`,

		`CREATE TABLE IF NOT EXISTS entries (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			measure_id TEXT NOT NULL REFERENCES measures(id) ON DELETE CASCADE,
			value      REAL NOT NULL,
			date_unix  INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_period ON entries(user_id, measure_id, date_unix)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_user_date ON entries(user_id, date_unix)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount     TEXT NOT NULL,
			type       TEXT NOT NULL,
			goal_id    TEXT,
			period_id  TEXT,
			title      TEXT NOT NULL DEFAULT '',
			notes      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user ON transactions(user_id)`,

		// The reward idempotency key. A concurrent duplicate grant dies
		// here as a constraint violation instead of becoming a double
		// payment.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_reward_once
			ON transactions(user_id, goal_id, period_id)
			WHERE type = 'REWARD'`,
	}
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.Store over a SQLite database.
type Store struct {
	q    dbtx
	root *sql.DB // nil when this Store is the view inside a transaction
}

// Open opens (creating if needed) the database at path and applies
// migrations. SQLite has a single writer, so the pool is capped at one
// connection; every operation is serialized at this layer.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{q: db, root: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.root == nil {
		return nil
	}
	return s.root.Close()
}

// Atomic runs fn against a transactional view of the store. Nested calls
// join the enclosing transaction.
func (s *Store) Atomic(ctx context.Context, fn func(domain.Store) error) error {
	if s.root == nil {
		return fn(s)
	}

	tx, err := s.root.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
