// Package tracker is the collaborator-facing application service: user
// profiles, measures, goals, and the entry lifecycle. Entry mutations are
// the triggers that feed the reward evaluator.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/app/reward"
	"github.com/kaizen-app/kaizen/internal/domain"
	"github.com/kaizen-app/kaizen/internal/infra/observability"
)

// Service wires the store and the reward evaluator together.
type Service struct {
	store     domain.Store
	evaluator *reward.Evaluator
}

// New creates the tracker service.
func New(store domain.Store, evaluator *reward.Evaluator) *Service {
	return &Service{store: store, evaluator: evaluator}
}

// ─── Users ──────────────────────────────────────────────────────────────────

// RegisterUser creates a user with a zero balance and the default
// Sunday-start week.
func (s *Service) RegisterUser(ctx context.Context, email, name string) (*domain.User, error) {
	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: email and name are required", domain.ErrValidation)
	}
	u := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Balance:   decimal.Zero,
		WeekStart: domain.WeekStartSunday,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// User returns the profile, including the current balance.
func (s *Service) User(ctx context.Context, id string) (*domain.User, error) {
	return s.store.UserByID(ctx, id)
}

// SetWeekStart updates the user's week-start preference. Changing it moves
// which WEEKLY period future entries land in; already-paid periods keep
// their old keys.
func (s *Service) SetWeekStart(ctx context.Context, userID string, ws domain.WeekStart) error {
	if ws != domain.WeekStartSunday && ws != domain.WeekStartMonday {
		return fmt.Errorf("%w: week start must be SUNDAY or MONDAY", domain.ErrValidation)
	}
	return s.store.SetWeekStart(ctx, userID, ws)
}

// ─── Measures ───────────────────────────────────────────────────────────────

// CreateMeasure registers a trackable quantity. Name and unit are required;
// icon and color fall back to the client defaults.
func (s *Service) CreateMeasure(ctx context.Context, userID, name, unit, icon, color string) (*domain.Measure, error) {
	if name == "" || unit == "" {
		return nil, fmt.Errorf("%w: name and unit are required", domain.ErrValidation)
	}
	if icon == "" {
		icon = "Target"
	}
	if color == "" {
		color = "emerald"
	}
	m := &domain.Measure{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Unit:      unit,
		Icon:      icon,
		Color:     color,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateMeasure(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MeasureWithGoals is the listing shape clients consume.
type MeasureWithGoals struct {
	domain.Measure
	Goals []domain.Goal `json:"goals"`
}

// Measures lists the user's measures with their goals attached.
func (s *Service) Measures(ctx context.Context, userID string) ([]MeasureWithGoals, error) {
	measures, err := s.store.MeasuresByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MeasureWithGoals, 0, len(measures))
	for _, m := range measures {
		goals, err := s.store.GoalsByMeasure(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, MeasureWithGoals{Measure: m, Goals: goals})
	}
	return out, nil
}

// MeasurePatch carries optional measure updates.
type MeasurePatch struct {
	Name  *string
	Unit  *string
	Icon  *string
	Color *string
}

// UpdateMeasure edits display fields on the caller's measure.
func (s *Service) UpdateMeasure(ctx context.Context, userID, id string, patch MeasurePatch) (*domain.Measure, error) {
	m, err := s.ownedMeasure(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		m.Name = *patch.Name
	}
	if patch.Unit != nil {
		m.Unit = *patch.Unit
	}
	if patch.Icon != nil {
		m.Icon = *patch.Icon
	}
	if patch.Color != nil {
		m.Color = *patch.Color
	}
	if m.Name == "" || m.Unit == "" {
		return nil, fmt.Errorf("%w: name and unit are required", domain.ErrValidation)
	}
	if err := s.store.UpdateMeasure(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMeasure removes the caller's measure together with its goals and
// entries, which also ends reward evaluation for it.
func (s *Service) DeleteMeasure(ctx context.Context, userID, id string) error {
	if _, err := s.ownedMeasure(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteMeasure(ctx, id)
}

func (s *Service) ownedMeasure(ctx context.Context, userID, id string) (*domain.Measure, error) {
	m, err := s.store.MeasureByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		// Foreign measures look exactly like missing ones.
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// ─── Goals ──────────────────────────────────────────────────────────────────

// GoalInput is the creation payload. Goals are immutable afterwards.
type GoalInput struct {
	MeasureID    string
	Timeframe    domain.Timeframe
	Type         domain.GoalType
	TargetValue  float64
	RewardAmount decimal.Decimal
	MinPerEntry  *float64
}

// CreateGoal attaches a periodic target to the caller's measure.
func (s *Service) CreateGoal(ctx context.Context, userID string, in GoalInput) (*domain.Goal, error) {
	if _, err := s.ownedMeasure(ctx, userID, in.MeasureID); err != nil {
		return nil, err
	}

	switch in.Timeframe {
	case domain.TimeframeDaily, domain.TimeframeWeekly:
	case domain.TimeframeMonthly:
		return nil, fmt.Errorf("%w: MONTHLY goals are not supported yet", domain.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown timeframe %q", domain.ErrValidation, in.Timeframe)
	}
	switch in.Type {
	case domain.GoalTotal, domain.GoalCount:
	default:
		return nil, fmt.Errorf("%w: unknown goal type %q", domain.ErrValidation, in.Type)
	}
	if in.TargetValue <= 0 || math.IsNaN(in.TargetValue) || math.IsInf(in.TargetValue, 0) {
		return nil, fmt.Errorf("%w: target value must be a positive number", domain.ErrValidation)
	}
	if in.RewardAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: reward amount must be positive", domain.ErrValidation)
	}
	if in.MinPerEntry != nil && (*in.MinPerEntry < 0 || math.IsNaN(*in.MinPerEntry)) {
		return nil, fmt.Errorf("%w: min per entry must be non-negative", domain.ErrValidation)
	}

	g := &domain.Goal{
		ID:           uuid.NewString(),
		MeasureID:    in.MeasureID,
		Timeframe:    in.Timeframe,
		Type:         in.Type,
		TargetValue:  in.TargetValue,
		RewardAmount: in.RewardAmount,
		MinPerEntry:  in.MinPerEntry,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Goals lists every goal across the user's measures.
func (s *Service) Goals(ctx context.Context, userID string) ([]domain.Goal, error) {
	return s.store.GoalsByUser(ctx, userID)
}

// DeleteGoal removes the caller's goal. Already-paid rewards stay on the
// ledger.
func (s *Service) DeleteGoal(ctx context.Context, userID, id string) error {
	g, err := s.store.GoalByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ownedMeasure(ctx, userID, g.MeasureID); err != nil {
		return err
	}
	return s.store.DeleteGoal(ctx, id)
}

// ─── Entries ────────────────────────────────────────────────────────────────

// LogEntry persists a measurement and re-evaluates the measure's goals for
// the entry's date. The entry always survives even when reward crediting
// fails; the returned Result reflects only what was actually paid.
func (s *Service) LogEntry(ctx context.Context, userID, measureID string, value float64, date time.Time) (*domain.Entry, reward.Result, error) {
	zero := reward.Result{TotalReward: decimal.Zero}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, zero, fmt.Errorf("%w: value must be a number", domain.ErrValidation)
	}
	if date.IsZero() {
		return nil, zero, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	if _, err := s.ownedMeasure(ctx, userID, measureID); err != nil {
		return nil, zero, err
	}

	e := &domain.Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		MeasureID: measureID,
		Value:     value,
		Date:      date,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return nil, zero, err
	}
	observability.EntriesLogged.WithLabelValues("create").Inc()

	result, err := s.evaluator.Evaluate(ctx, userID, measureID, date)
	if err != nil {
		log.Printf("[tracker] evaluation after entry %s failed: %v", e.ID, err)
		return e, zero, nil
	}
	return e, result, nil
}

// EntryPatch carries optional entry updates.
type EntryPatch struct {
	Value *float64
	Date  *time.Time
}

// UpdateEntry edits the caller's entry and re-evaluates at the entry's
// (possibly new) date.
func (s *Service) UpdateEntry(ctx context.Context, userID, id string, patch EntryPatch) (*domain.Entry, reward.Result, error) {
	zero := reward.Result{TotalReward: decimal.Zero}

	e, err := s.ownedEntry(ctx, userID, id)
	if err != nil {
		return nil, zero, err
	}
	if patch.Value != nil {
		if math.IsNaN(*patch.Value) || math.IsInf(*patch.Value, 0) {
			return nil, zero, fmt.Errorf("%w: value must be a number", domain.ErrValidation)
		}
		e.Value = *patch.Value
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return nil, zero, fmt.Errorf("%w: date is required", domain.ErrValidation)
		}
		e.Date = *patch.Date
	}

	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return nil, zero, err
	}
	observability.EntriesLogged.WithLabelValues("update").Inc()

	result, err := s.evaluator.Evaluate(ctx, userID, e.MeasureID, e.Date)
	if err != nil {
		log.Printf("[tracker] evaluation after entry %s failed: %v", e.ID, err)
		return e, zero, nil
	}
	return e, result, nil
}

// DeleteEntry removes the caller's entry. No re-evaluation runs: rewards
// are additive only, and a period that was paid stays paid even when the
// entries that earned it disappear.
func (s *Service) DeleteEntry(ctx context.Context, userID, id string) error {
	if _, err := s.ownedEntry(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	observability.EntriesLogged.WithLabelValues("delete").Inc()
	return nil
}

// Entries lists the caller's entries, optionally restricted to a date range.
func (s *Service) Entries(ctx context.Context, userID string, start, end *time.Time) ([]domain.Entry, error) {
	return s.store.EntriesByUser(ctx, userID, start, end)
}

func (s *Service) ownedEntry(ctx context.Context, userID, id string) (*domain.Entry, error) {
	e, err := s.store.EntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

// ─── Batch Logging ──────────────────────────────────────────────────────────

// BatchItem is one quick-log line. MeasureID wins when both identifiers are
// present; otherwise MeasureName is resolved against the caller's measures.
type BatchItem struct {
	MeasureID   string    `json:"measureId,omitempty"`
	MeasureName string    `json:"measureName,omitempty"`
	Value       float64   `json:"value"`
	Date        time.Time `json:"date"`
}

// BatchOutcome is one item's result. Err is empty on success.
type BatchOutcome struct {
	Entry  *domain.Entry `json:"entry,omitempty"`
	Reward reward.Result `json:"reward"`
	Err    string        `json:"error,omitempty"`
}

// LogBatch logs each item independently: a bad item records its failure and
// the rest proceed. Outcomes are returned in input order.
func (s *Service) LogBatch(ctx context.Context, userID string, items []BatchItem) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(items))
	for _, item := range items {
		outcomes = append(outcomes, s.logBatchItem(ctx, userID, item))
	}
	return outcomes
}

func (s *Service) logBatchItem(ctx context.Context, userID string, item BatchItem) BatchOutcome {
	measureID := item.MeasureID
	if measureID == "" {
		m, err := s.store.MeasureByName(ctx, userID, item.MeasureName)
		if errors.Is(err, domain.ErrNotFound) {
			return BatchOutcome{
				Reward: reward.Result{TotalReward: decimal.Zero},
				Err:    fmt.Sprintf("%s: %q", domain.ErrUnknownMeasureName, item.MeasureName),
			}
		}
		if err != nil {
			return BatchOutcome{Reward: reward.Result{TotalReward: decimal.Zero}, Err: err.Error()}
		}
		measureID = m.ID
	}

	entry, result, err := s.LogEntry(ctx, userID, measureID, item.Value, item.Date)
	if err != nil {
		return BatchOutcome{Reward: reward.Result{TotalReward: decimal.Zero}, Err: err.Error()}
	}
	return BatchOutcome{Entry: entry, Reward: result}
}
