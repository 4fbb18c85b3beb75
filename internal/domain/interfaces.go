package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Store Interface ────────────────────────────────────────────────────────
// The storage boundary. Infrastructure implements it; application services
// depend on it. No service ever reaches for a process-wide handle — the
// composition root injects one Store into everything.

// Store is the persistence contract the services consume.
//
// Atomic runs fn against a Store whose writes are applied as one unit:
// either every write inside fn survives or none does. Every ledger
// operation pairs its balance write with its transaction write inside
// Atomic, which is what keeps the balance invariant crash-safe.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error

	// Users
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	SetWeekStart(ctx context.Context, userID string, ws WeekStart) error
	// AddToBalance adjusts the stored balance by delta at the storage
	// layer (an atomic increment, not read-modify-write). Only the
	// ledger calls this, always inside Atomic next to a transaction write.
	AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error

	// Measures
	CreateMeasure(ctx context.Context, m *Measure) error
	MeasureByID(ctx context.Context, id string) (*Measure, error)
	MeasureByName(ctx context.Context, userID, name string) (*Measure, error)
	MeasuresByUser(ctx context.Context, userID string) ([]Measure, error)
	UpdateMeasure(ctx context.Context, m *Measure) error
	// DeleteMeasure cascades to the measure's goals and entries.
	DeleteMeasure(ctx context.Context, id string) error

	// Goals
	CreateGoal(ctx context.Context, g *Goal) error
	GoalByID(ctx context.Context, id string) (*Goal, error)
	GoalsByMeasure(ctx context.Context, measureID string) ([]Goal, error)
	GoalsByUser(ctx context.Context, userID string) ([]Goal, error)
	DeleteGoal(ctx context.Context, id string) error

	// Entries
	CreateEntry(ctx context.Context, e *Entry) error
	EntryByID(ctx context.Context, id string) (*Entry, error)
	// EntriesBetween returns the user's entries for one measure whose
	// date falls in [start, end), newest first.
	EntriesBetween(ctx context.Context, userID, measureID string, start, end time.Time) ([]Entry, error)
	EntriesByUser(ctx context.Context, userID string, start, end *time.Time) ([]Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id string) error

	// Transactions
	// CreateTransaction returns ErrAlreadyGranted when a REWARD row for
	// the same (user, goal, period) already exists — the storage layer's
	// uniqueness constraint turns the duplicate-reward race into a
	// rejected insert instead of a double payment.
	CreateTransaction(ctx context.Context, t *Transaction) error
	TransactionByID(ctx context.Context, id string) (*Transaction, error)
	TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
	RewardExists(ctx context.Context, userID, goalID, periodID string) (bool, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	// ListUserIDs supports the ledger audit walk.
	ListUserIDs(ctx context.Context) ([]string, error)
	// SumTransactions returns the signed sum of a user's surviving
	// transaction amounts — the value Balance must always equal.
	SumTransactions(ctx context.Context, userID string) (decimal.Decimal, error)
}
