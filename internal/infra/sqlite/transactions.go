package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/domain"
)

// ─── Transaction Operations ─────────────────────────────────────────────────

const txCols = `id, user_id, amount, type, goal_id, period_id, title, notes, created_at`

// CreateTransaction inserts a ledger row. A REWARD row that collides with
// the (user_id, goal_id, period_id) unique index comes back as
// domain.ErrAlreadyGranted.
func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, amount, type, goal_id, period_id, title, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount.String(), string(t.Type),
		nullable(t.GoalID), nullable(t.PeriodID), t.Title, t.Notes, formatTime(t.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyGranted
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) TransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+txCols+` FROM transactions WHERE id = ?`, id)
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
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+txCols+` FROM transactions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Store) RewardExists(ctx context.Context, userID, goalID, periodID string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM transactions
		WHERE user_id = ? AND goal_id = ? AND period_id = ? AND type = 'REWARD'`,
		userID, goalID, periodID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("reward lookup: %w", err)
	}
	return n > 0, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET amount = ?, title = ?, notes = ? WHERE id = ?`,
		t.Amount.String(), t.Title, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) SumTransactions(ctx context.Context, userID string) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT amount FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", raw, err)
		}
		sum = sum.Add(amount)
	}
	return sum, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			t               domain.Transaction
			amount, created string
			ttype           string
			goalID, period  sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.UserID, &amount, &ttype,
			&goalID, &period, &t.Title, &t.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		var err error
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		t.Type = domain.TransactionType(ttype)
		t.GoalID = goalID.String
		t.PeriodID = period.String
		t.CreatedAt = parseTime(created)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
