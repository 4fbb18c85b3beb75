package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/domain"
)

// ─── Measure Operations ─────────────────────────────────────────────────────

const measureCols = `id, user_id, name, unit, icon, color, created_at`

func (s *Store) CreateMeasure(ctx context.Context, m *domain.Measure) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO measures (id, user_id, name, unit, icon, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Name, m.Unit, m.Icon, m.Color, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert measure: %w", err)
	}
	return nil
}

func (s *Store) MeasureByID(ctx context.Context, id string) (*domain.Measure, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+measureCols+` FROM measures WHERE id = ?`, id)
	return scanMeasure(row)
}

func (s *Store) MeasureByName(ctx context.Context, userID, name string) (*domain.Measure, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+measureCols+` FROM measures WHERE user_id = ? AND name = ?`,
		userID, name)
	return scanMeasure(row)
}

func (s *Store) MeasuresByUser(ctx context.Context, userID string) ([]domain.Measure, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+measureCols+` FROM measures WHERE user_id = ? ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list measures: %w", err)
	}
	defer rows.Close()

	var measures []domain.Measure
	for rows.Next() {
		var (
			m       domain.Measure
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Unit, &m.Icon, &m.Color, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(created)
		measures = append(measures, m)
	}
	return measures, rows.Err()
}

func (s *Store) UpdateMeasure(ctx context.Context, m *domain.Measure) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE measures SET name = ?, unit = ?, icon = ?, color = ?
		WHERE id = ?`,
		m.Name, m.Unit, m.Icon, m.Color, m.ID)
	if err != nil {
		return fmt.Errorf("update measure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteMeasure removes the measure; goals and entries go with it via
// foreign-key cascade.
func (s *Store) DeleteMeasure(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM measures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete measure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanMeasure(row *sql.Row) (*domain.Measure, error) {
	var (
		m       domain.Measure
		created string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Unit, &m.Icon, &m.Color, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan measure: %w", err)
	}
	m.CreatedAt = parseTime(created)
	return &m, nil
}

// ─── Goal Operations ────────────────────────────────────────────────────────

const goalCols = `id, measure_id, timeframe, type, target_value, reward_amount, min_per_entry, created_at`

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	var minPer any
	if g.MinPerEntry != nil {
		minPer = *g.MinPerEntry
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO goals (id, measure_id, timeframe, type, target_value, reward_amount, min_per_entry, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.MeasureID, string(g.Timeframe), string(g.Type),
		g.TargetValue, g.RewardAmount.String(), minPer, formatTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (s *Store) GoalByID(ctx context.Context, id string) (*domain.Goal, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE id = ?`, id)
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
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE measure_id = ? ORDER BY created_at`,
		measureID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return collectGoals(rows)
}

func (s *Store) GoalsByUser(ctx context.Context, userID string) ([]domain.Goal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT g.id, g.measure_id, g.timeframe, g.type, g.target_value, g.reward_amount, g.min_per_entry, g.created_at
		FROM goals g
		JOIN measures m ON m.id = g.measure_id
		WHERE m.user_id = ?
		ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user goals: %w", err)
	}
	return collectGoals(rows)
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectGoals(rows *sql.Rows) ([]domain.Goal, error) {
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var (
			g                 domain.Goal
			timeframe, gtype  string
			reward, created   string
			minPer            sql.NullFloat64
		)
		if err := rows.Scan(&g.ID, &g.MeasureID, &timeframe, &gtype,
			&g.TargetValue, &reward, &minPer, &created); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Timeframe = domain.Timeframe(timeframe)
		g.Type = domain.GoalType(gtype)
		var err error
		g.RewardAmount, err = decimal.NewFromString(reward)
		if err != nil {
			return nil, fmt.Errorf("corrupt reward amount %q: %w", reward, err)
		}
		if minPer.Valid {
			v := minPer.Float64
			g.MinPerEntry = &v
		}
		g.CreatedAt = parseTime(created)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}
