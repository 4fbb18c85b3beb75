// Package reward turns satisfied goals into ledger credits.
//
// The evaluator is additive only: it grants rewards when a period's
// aggregate reaches a goal's target, and it never claws one back when
// entries are later edited down or deleted. Revoking money already credited
// is a product decision this service deliberately does not take.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/app/ledger"
	"github.com/kaizen-app/kaizen/internal/domain"
)

// Earned is one goal's payout within a single evaluation.
type Earned struct {
	Goal   string          `json:"goal"`
	Amount decimal.Decimal `json:"amount"`
}

// Result summarizes what one evaluation paid out.
type Result struct {
	TotalReward   decimal.Decimal `json:"totalReward"`
	RewardsEarned []Earned        `json:"rewardsEarned"`
}

// Evaluator recomputes goal satisfaction for a measure around a changed date.
type Evaluator struct {
	store  domain.Store
	ledger *ledger.Service
}

// New creates an evaluator.
func New(store domain.Store, ledger *ledger.Service) *Evaluator {
	return &Evaluator{store: store, ledger: ledger}
}

// Evaluate loads the measure's goals and, for each goal whose period covers
// changedDate, checks whether the period's aggregate now meets the target.
// Newly met goals are credited through the ledger exactly once per
// (goal, period).
//
// Goals are independent: one goal failing to qualify, or failing to credit,
// never blocks the others — per-goal errors are logged and skipped, and the
// evaluator never retries. A measure deleted out from under the call yields
// a zero Result rather than an error.
func (ev *Evaluator) Evaluate(ctx context.Context, userID, measureID string, changedDate time.Time) (Result, error) {
	result := Result{TotalReward: decimal.Zero}

	measure, err := ev.store.MeasureByID(ctx, measureID)
	if errors.Is(err, domain.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return result, err
	}

	goals, err := ev.store.GoalsByMeasure(ctx, measureID)
	if err != nil {
		return result, err
	}

	// The week-start preference is only needed for WEEKLY goals; daily
	// keys never touch the user row.
	var (
		weekStart       domain.WeekStart
		weekStartLoaded bool
	)

	for _, goal := range goals {
		if goal.Timeframe == domain.TimeframeWeekly && !weekStartLoaded {
			user, err := ev.store.UserByID(ctx, userID)
			if err != nil {
				log.Printf("[reward] user %s lookup failed, skipping weekly goals: %v", userID, err)
				continue
			}
			weekStart = user.WeekStart
			weekStartLoaded = true
		}

		periodID, err := domain.PeriodKey(changedDate, goal.Timeframe, weekStart)
		if err != nil {
			log.Printf("[reward] goal %s: %v", goal.ID, err)
			continue
		}
		start, end, err := domain.PeriodBounds(changedDate, goal.Timeframe, weekStart)
		if err != nil {
			log.Printf("[reward] goal %s: %v", goal.ID, err)
			continue
		}

		entries, err := ev.store.EntriesBetween(ctx, userID, measureID, start, end)
		if err != nil {
			log.Printf("[reward] goal %s: entries load failed: %v", goal.ID, err)
			continue
		}

		achieved := domain.Aggregate(goal, entries)
		if achieved < goal.TargetValue {
			continue
		}

		granted, err := ev.ledger.AlreadyGranted(ctx, userID, goal.ID, periodID)
		if err != nil {
			log.Printf("[reward] goal %s: grant lookup failed: %v", goal.ID, err)
			continue
		}
		if granted {
			continue
		}

		notes := fmt.Sprintf("%s (%s)", measure.Name, goal.Description())
		_, err = ev.ledger.GrantReward(ctx, userID, goal.ID, periodID, goal.RewardAmount, "Goal Met", notes)
		if errors.Is(err, domain.ErrAlreadyGranted) {
			// Lost a race to a concurrent evaluation; the money went out
			// exactly once, which is all that matters.
			continue
		}
		if err != nil {
			log.Printf("[reward] goal %s: grant failed: %v", goal.ID, err)
			continue
		}

		log.Printf("[reward] goal met: %s %s %.2f/%.2f, rewarding %s",
			measure.Name, goal.Description(), achieved, goal.TargetValue, goal.RewardAmount)
		result.TotalReward = result.TotalReward.Add(goal.RewardAmount)
		result.RewardsEarned = append(result.RewardsEarned, Earned{
			Goal:   goal.Description(),
			Amount: goal.RewardAmount,
		})
	}

	return result, nil
}
