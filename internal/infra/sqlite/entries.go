package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kaizen-app/kaizen/internal/domain"
)

// ─── Entry Operations ───────────────────────────────────────────────────────
// Entry dates are stored as unix seconds so range queries compare instants,
// not strings. The period key itself is always computed from the in-memory
// date at mutation time, so the stored zone never matters.

func (s *Store) CreateEntry(ctx context.Context, e *domain.Entry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO entries (id, user_id, measure_id, value, date_unix, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.MeasureID, e.Value, e.Date.Unix(), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) EntryByID(ctx context.Context, id string) (*domain.Entry, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, measure_id, value, date_unix, created_at
		FROM entries WHERE id = ?`, id)

	var (
		e        domain.Entry
		dateUnix int64
		created  string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.MeasureID, &e.Value, &dateUnix, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Date = time.Unix(dateUnix, 0)
	e.CreatedAt = parseTime(created)
	return &e, nil
}

func (s *Store) EntriesBetween(ctx context.Context, userID, measureID string, start, end time.Time) ([]domain.Entry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, measure_id, value, date_unix, created_at
		FROM entries
		WHERE user_id = ? AND measure_id = ? AND date_unix >= ? AND date_unix < ?
		ORDER BY date_unix DESC`,
		userID, measureID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *Store) EntriesByUser(ctx context.Context, userID string, start, end *time.Time) ([]domain.Entry, error) {
	query := `
		SELECT id, user_id, measure_id, value, date_unix, created_at
		FROM entries WHERE user_id = ?`
	args := []any{userID}
	if start != nil {
		query += ` AND date_unix >= ?`
		args = append(args, start.Unix())
	}
	if end != nil {
		query += ` AND date_unix <= ?`
		args = append(args, end.Unix())
	}
	query += ` ORDER BY date_unix DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *Store) UpdateEntry(ctx context.Context, e *domain.Entry) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE entries SET value = ?, date_unix = ? WHERE id = ?`,
		e.Value, e.Date.Unix(), e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectEntries(rows *sql.Rows) ([]domain.Entry, error) {
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var (
			e        domain.Entry
			dateUnix int64
			created  string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.MeasureID, &e.Value, &dateUnix, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Date = time.Unix(dateUnix, 0)
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
