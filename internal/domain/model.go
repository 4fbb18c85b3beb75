// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring — everything else depends on it, it depends on
// nothing but the decimal money type.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Enumerations ───────────────────────────────────────────────────────────
// Closed sets. The aggregator and period key function switch exhaustively
// over these, so adding a variant is a compile-visible change.

// Timeframe is the period a goal's target applies to.
type Timeframe string

const (
	TimeframeDaily  Timeframe = "DAILY"
	TimeframeWeekly Timeframe = "WEEKLY"
	// TimeframeMonthly exists in the product vocabulary but has no period
	// semantics yet. PeriodKey rejects it and goal creation refuses it.
	TimeframeMonthly Timeframe = "MONTHLY"
)

// GoalType selects how a period's entries are reduced to one number.
type GoalType string

const (
	GoalTotal GoalType = "TOTAL" // sum of entry values
	GoalCount GoalType = "COUNT" // number of qualifying entries
)

// TransactionType is the business reason for a ledger row.
type TransactionType string

const (
	TxReward       TransactionType = "REWARD"
	TxCashout      TransactionType = "CASHOUT"
	TxManualCredit TransactionType = "MANUAL_CREDIT"
	TxManualDebit  TransactionType = "MANUAL_DEBIT"
)

// Credits reports whether the transaction type moves money toward the user.
// Edited amounts are clamped to this polarity — an edit can change a
// transaction's magnitude, never its economic direction.
func (t TransactionType) Credits() bool {
	return t == TxReward || t == TxManualCredit
}

// WeekStart is the user's preference for which day begins a week.
type WeekStart string

const (
	WeekStartSunday WeekStart = "SUNDAY"
	WeekStartMonday WeekStart = "MONDAY"
)

// ─── Entities ───────────────────────────────────────────────────────────────

// User owns measures, entries and a reward balance.
//
// Invariant: Balance always equals the signed sum of the user's surviving
// transactions. Nothing writes Balance directly except the ledger.
type User struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	WeekStart WeekStart       `json:"week_start"`
	CreatedAt time.Time       `json:"created_at"`
}

// Measure is a user-defined trackable quantity ("Workout", unit "minutes").
// Icon and color are display metadata carried for the clients.
type Measure struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Goal is a periodic target on a measure that pays a reward when met.
// Goals are immutable once created; there is no update path.
type Goal struct {
	ID           string          `json:"id"`
	MeasureID    string          `json:"measure_id"`
	Timeframe    Timeframe       `json:"timeframe"`
	Type         GoalType        `json:"type"`
	TargetValue  float64         `json:"target_value"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
	// MinPerEntry is an optional floor; only COUNT goals consult it.
	MinPerEntry *float64  `json:"min_per_entry,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Description renders the goal the way reward summaries reference it,
// e.g. "DAILY TOTAL".
func (g Goal) Description() string {
	return string(g.Timeframe) + " " + string(g.Type)
}

// Entry is one dated measurement logged against a measure. Only the calendar
// date of Date matters for aggregation.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MeasureID string    `json:"measure_id"`
	Value     float64   `json:"value"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is a single signed ledger row. Positive amounts credit the
// user, negative amounts debit.
//
// GoalID and PeriodID are set only on REWARD rows; together with UserID they
// form the idempotency key that prevents paying the same goal twice for the
// same period.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	GoalID    string          `json:"goal_id,omitempty"`
	PeriodID  string          `json:"period_id,omitempty"`
	Title     string          `json:"title"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
