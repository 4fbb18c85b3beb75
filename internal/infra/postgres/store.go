// Package postgres is the server-deployment store, a drop-in alternative to
// the sqlite default. Same contracts: atomic write units, the reward
// uniqueness constraint, cascading measure deletes.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/domain"
)

// Migrations returns the schema statements, one per string.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			balance    NUMERIC(14,2) NOT NULL DEFAULT 0,
			week_start TEXT NOT NULL DEFAULT 'SUNDAY',
			created_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS measures (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name       TEXT NOT NULL,
			unit       TEXT NOT NULL,
			icon       TEXT NOT NULL DEFAULT 'Target',
			color      TEXT NOT NULL DEFAULT 'emerald',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measures_user ON measures(user_id)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id            TEXT PRIMARY KEY,
			measure_id    TEXT NOT NULL REFERENCES measures(id) ON DELETE CASCADE,
			timeframe     TEXT NOT NULL,
			type          TEXT NOT NULL,
			target_value  DOUBLE PRECISION NOT NULL,
			reward_amount NUMERIC(14,2) NOT NULL,
			min_per_entry DOUBLE PRECISION,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_measure ON goals(measure_id)`,

		`CREATE TABLE IF NOT EXISTS entries (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			measure_id TEXT NOT NULL REFERENCES measures(id) ON DELETE CASCADE,
			value      DOUBLE PRECISION NOT NULL,
			date       TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_period ON entries(user_id, measure_id, date)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount     NUMERIC(14,2) NOT NULL,
			type       TEXT NOT NULL,
			goal_id    TEXT,
			period_id  TEXT,
			title      TEXT NOT NULL DEFAULT '',
			notes      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_user ON transactions(user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_reward_once
			ON transactions(user_id, goal_id, period_id)
			WHERE type = 'REWARD'`,
	}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store over Postgres.
type Store struct {
	q    querier
	pool *pgxpool.Pool // nil inside a transaction
}

// Connect opens a pool for the DSN and applies migrations.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	for _, stmt := range Migrations() {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{q: pool, pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Atomic runs fn inside a database transaction. Nested calls join the
// enclosing transaction.
func (s *Store) Atomic(ctx context.Context, fn func(domain.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Store{q: tx}); err != nil {
		tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFoundOn(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ─── Users ──────────────────────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO users (id, email, name, balance, week_start, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.Balance, string(u.WeekStart), u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email already registered", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	var (
		u         domain.User
		weekStart string
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, email, name, balance, week_start, created_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Balance, &weekStart, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.WeekStart = domain.WeekStart(weekStart)
	return &u, nil
}

func (s *Store) SetWeekStart(ctx context.Context, userID string, ws domain.WeekStart) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET week_start = $1 WHERE id = $2`, string(ws), userID)
	if err != nil {
		return fmt.Errorf("update week start: %w", err)
	}
	return notFoundOn(tag)
}

// AddToBalance is a true atomic increment here — NUMERIC arithmetic happens
// in the database, so concurrent adjusters cannot lose updates.
func (s *Store) AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`, delta, userID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	return notFoundOn(tag)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Measures ───────────────────────────────────────────────────────────────

func (s *Store) CreateMeasure(ctx context.Context, m *domain.Measure) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO measures (id, user_id, name, unit, icon, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.UserID, m.Name, m.Unit, m.Icon, m.Color, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert measure: %w", err)
	}
	return nil
}

func (s *Store) MeasureByID(ctx context.Context, id string) (*domain.Measure, error) {
	return s.measureWhere(ctx, `id = $1`, id)
}

func (s *Store) MeasureByName(ctx context.Context, userID, name string) (*domain.Measure, error) {
	return s.measureWhere(ctx, `user_id = $1 AND name = $2`, userID, name)
}

func (s *Store) measureWhere(ctx context.Context, where string, args ...any) (*domain.Measure, error) {
	var m domain.Measure
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, name, unit, icon, color, created_at
		FROM measures WHERE `+where, args...).
		Scan(&m.ID, &m.UserID, &m.Name, &m.Unit, &m.Icon, &m.Color, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan measure: %w", err)
	}
	return &m, nil
}

func (s *Store) MeasuresByUser(ctx context.Context, userID string) ([]domain.Measure, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, name, unit, icon, color, created_at
		FROM measures WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list measures: %w", err)
	}
	defer rows.Close()

	var measures []domain.Measure
	for rows.Next() {
		var m domain.Measure
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Unit, &m.Icon, &m.Color, &m.CreatedAt); err != nil {
			return nil, err
		}
		measures = append(measures, m)
	}
	return measures, rows.Err()
}

func (s *Store) UpdateMeasure(ctx context.Context, m *domain.Measure) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE measures SET name = $1, unit = $2, icon = $3, color = $4
		WHERE id = $5`,
		m.Name, m.Unit, m.Icon, m.Color, m.ID)
	if err != nil {
		return fmt.Errorf("update measure: %w", err)
	}
	return notFoundOn(tag)
}

func (s *Store) DeleteMeasure(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM measures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete measure: %w", err)
	}
	return notFoundOn(tag)
}

// ─── Goals ──────────────────────────────────────────────────────────────────

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO goals (id, measure_id, timeframe, type, target_value, reward_amount, min_per_entry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.MeasureID, string(g.Timeframe), string(g.Type),
		g.TargetValue, g.RewardAmount, g.MinPerEntry, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

const goalCols = `id, measure_id, timeframe, type, target_value, reward_amount, min_per_entry, created_at`

func (s *Store) GoalByID(ctx context.Context, id string) (*domain.Goal, error) {
	rows, err := s.q.Query(ctx, `SELECT `+goalCols+` FROM goals WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	goals, err := collectGoals(rows)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, domain.ErrNotFound
	}
	return &goals[0], nil
}

func (s *Store) GoalsByMeasure(ctx context.Context, measureID string) ([]domain.Goal, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+goalCols+` FROM goals WHERE measure_id = $1 ORDER BY created_at`, measureID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return collectGoals(rows)
}

func (s *Store) GoalsByUser(ctx context.Context, userID string) ([]domain.Goal, error) {
	rows, err := s.q.Query(ctx, `
		SELECT g.id, g.measure_id, g.timeframe, g.type, g.target_value, g.reward_amount, g.min_per_entry, g.created_at
		FROM goals g
		JOIN measures m ON m.id = g.measure_id
		WHERE m.user_id = $1
		ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user goals: %w", err)
	}
	return collectGoals(rows)
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return notFoundOn(tag)
}

func collectGoals(rows pgx.Rows) ([]domain.Goal, error) {
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var (
			g                domain.Goal
			timeframe, gtype string
		)
		if err := rows.Scan(&g.ID, &g.MeasureID, &timeframe, &gtype,
			&g.TargetValue, &g.RewardAmount, &g.MinPerEntry, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Timeframe = domain.Timeframe(timeframe)
		g.Type = domain.GoalType(gtype)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// ─── Entries ────────────────────────────────────────────────────────────────

func (s *Store) CreateEntry(ctx context.Context, e *domain.Entry) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO entries (id, user_id, measure_id, value, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.MeasureID, e.Value, e.Date, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) EntryByID(ctx context.Context, id string) (*domain.Entry, error) {
	var e domain.Entry
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, measure_id, value, date, created_at
		FROM entries WHERE id = $1`, id).
		Scan(&e.ID, &e.UserID, &e.MeasureID, &e.Value, &e.Date, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	return &e, nil
}

func (s *Store) EntriesBetween(ctx context.Context, userID, measureID string, start, end time.Time) ([]domain.Entry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, measure_id, value, date, created_at
		FROM entries
		WHERE user_id = $1 AND measure_id = $2 AND date >= $3 AND date < $4
		ORDER BY date DESC`,
		userID, measureID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *Store) EntriesByUser(ctx context.Context, userID string, start, end *time.Time) ([]domain.Entry, error) {
	query := `
		SELECT id, user_id, measure_id, value, date, created_at
		FROM entries WHERE user_id = $1`
	args := []any{userID}
	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date DESC`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *Store) UpdateEntry(ctx context.Context, e *domain.Entry) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE entries SET value = $1, date = $2 WHERE id = $3`,
		e.Value, e.Date, e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return notFoundOn(tag)
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return notFoundOn(tag)
}

func collectEntries(rows pgx.Rows) ([]domain.Entry, error) {
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.MeasureID, &e.Value, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Transactions ───────────────────────────────────────────────────────────

const txCols = `id, user_id, amount, type, goal_id, period_id, title, notes, created_at`

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	var goalID, periodID *string
	if t.GoalID != "" {
		goalID = &t.GoalID
	}
	if t.PeriodID != "" {
		periodID = &t.PeriodID
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO transactions (id, user_id, amount, type, goal_id, period_id, title, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.Amount, string(t.Type), goalID, periodID, t.Title, t.Notes, t.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyGranted
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) TransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	rows, err := s.q.Query(ctx, `SELECT `+txCols+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &txs[0], nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+txCols+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) RewardExists(ctx context.Context, userID, goalID, periodID string) (bool, error) {
	var n int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(1) FROM transactions
		WHERE user_id = $1 AND goal_id = $2 AND period_id = $3 AND type = 'REWARD'`,
		userID, goalID, periodID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("reward lookup: %w", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE transactions SET amount = $1, title = $2, notes = $3 WHERE id = $4`,
		t.Amount, t.Title, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return notFoundOn(tag)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return notFoundOn(tag)
}

func (s *Store) SumTransactions(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`, userID).
		Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			t                domain.Transaction
			ttype            string
			goalID, periodID *string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &ttype,
			&goalID, &periodID, &t.Title, &t.Notes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(ttype)
		if goalID != nil {
			t.GoalID = *goalID
		}
		if periodID != nil {
			t.PeriodID = *periodID
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
