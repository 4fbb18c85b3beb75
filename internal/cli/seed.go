package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/bxcodec/faker/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kaizen-app/kaizen/internal/app/tracker"
	"github.com/kaizen-app/kaizen/internal/daemon"
	"github.com/kaizen-app/kaizen/internal/domain"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Int("users", 3, "Number of extra random users")
	seedCmd.Flags().Int("days", 14, "Days of entry history to generate")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with demo data",
	Long: `Create a demo account (demo@kaizen.app) plus a handful of random users,
each with measures, goals and a couple of weeks of entries. Entries go
through the normal logging path, so rewards are paid exactly as they
would be in production.`,
	RunE: runSeed,
}

// seedMeasure pairs a measure definition with the goal attached to it.
type seedMeasure struct {
	name, unit, icon, color string
	timeframe               domain.Timeframe
	goalType                domain.GoalType
	target                  float64
	reward                  string
	minPerEntry             *float64
	// typical daily value range for generated entries
	low, high float64
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	svc, err := daemon.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	extraUsers, _ := cmd.Flags().GetInt("users")
	days, _ := cmd.Flags().GetInt("days")

	if err := seedUser(cmd.Context(), svc.Tracker, "demo@kaizen.app", "Demo User", days); err != nil {
		return err
	}
	for i := 0; i < extraUsers; i++ {
		if err := seedUser(cmd.Context(), svc.Tracker, faker.Email(), faker.Name(), days); err != nil {
			return err
		}
	}

	fmt.Printf("seeded %d user(s) with %d days of history\n", extraUsers+1, days)
	return nil
}

var minThirty = 30.0

var seedMeasures = []seedMeasure{
	{
		name: "Workout", unit: "minutes", icon: "Dumbbell", color: "emerald",
		timeframe: domain.TimeframeDaily, goalType: domain.GoalTotal,
		target: 30, reward: "5", low: 0, high: 60,
	},
	{
		name: "Reading", unit: "pages", icon: "BookOpen", color: "sky",
		timeframe: domain.TimeframeDaily, goalType: domain.GoalTotal,
		target: 20, reward: "2", low: 0, high: 40,
	},
	{
		name: "Long Sessions", unit: "minutes", icon: "Timer", color: "violet",
		timeframe: domain.TimeframeWeekly, goalType: domain.GoalCount,
		target: 3, reward: "10", minPerEntry: &minThirty, low: 10, high: 50,
	},
}

func seedUser(ctx context.Context, trk *tracker.Service, email, name string, days int) error {
	user, err := trk.RegisterUser(ctx, email, name)
	if err != nil {
		return fmt.Errorf("seed user %s: %w", email, err)
	}

	for _, sm := range seedMeasures {
		measure, err := trk.CreateMeasure(ctx, user.ID, sm.name, sm.unit, sm.icon, sm.color)
		if err != nil {
			return err
		}
		reward, err := decimal.NewFromString(sm.reward)
		if err != nil {
			return err
		}
		if _, err := trk.CreateGoal(ctx, user.ID, tracker.GoalInput{
			MeasureID:    measure.ID,
			Timeframe:    sm.timeframe,
			Type:         sm.goalType,
			TargetValue:  sm.target,
			RewardAmount: reward,
			MinPerEntry:  sm.minPerEntry,
		}); err != nil {
			return err
		}

		for day := 0; day < days; day++ {
			// Skip some days so the history looks lived-in.
			if rand.Intn(4) == 0 {
				continue
			}
			value := sm.low + rand.Float64()*(sm.high-sm.low)
			date := time.Now().AddDate(0, 0, -day)
			if _, _, err := trk.LogEntry(ctx, user.ID, measure.ID, value, date); err != nil {
				return err
			}
		}
	}
	return nil
}
