package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/domain"
)

// ─── User Operations ────────────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, email, name, balance, week_start, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Balance.String(), string(u.WeekStart), formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email already registered", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, email, name, balance, week_start, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) SetWeekStart(ctx context.Context, userID string, ws domain.WeekStart) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET week_start = ? WHERE id = ?`, string(ws), userID)
	if err != nil {
		return fmt.Errorf("update week start: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddToBalance adjusts the stored balance by delta. Decimal strings cannot
// be summed inside SQLite, so this is a read-modify-write — safe because
// the pool is capped at one connection and ledger callers additionally run
// it inside Atomic next to the matching transaction row.
func (s *Store) AddToBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	var raw string
	err := s.q.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("corrupt balance %q: %w", raw, err)
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE users SET balance = ? WHERE id = ?`,
		balance.Add(delta).String(), userID)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
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

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                          domain.User
		balance, weekStart, created string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &balance, &weekStart, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance %q: %w", balance, err)
	}
	u.WeekStart = domain.WeekStart(weekStart)
	u.CreatedAt = parseTime(created)
	return &u, nil
}
