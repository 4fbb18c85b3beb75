package domain

import (
	"fmt"
	"time"
)

// ─── Period Keys ────────────────────────────────────────────────────────────
// A period key is a deterministic string naming the day or week a date falls
// in. It doubles as part of the reward idempotency key, so its stability is
// load-bearing: two dates in the same period MUST produce identical keys.

const dayLayout = "2006-01-02"

// PeriodKey maps a date to the identifier of the period containing it.
//
// DAILY keys are the calendar date ("2024-03-09") in the date's own
// location — no UTC shifting, so an entry logged at 23:00 local stays on
// its local day. WEEKLY keys are "WEEK-" plus the date of the most recent
// week-start day on or before the date, where the start day is the user's
// preference (Sunday or Monday).
func PeriodKey(date time.Time, tf Timeframe, ws WeekStart) (string, error) {
	switch tf {
	case TimeframeDaily:
		return date.Format(dayLayout), nil
	case TimeframeWeekly:
		start := weekStartDate(date, ws)
		return "WEEK-" + start.Format(dayLayout), nil
	case TimeframeMonthly:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, tf)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, tf)
	}
}

// PeriodBounds returns the [start, end) window of the period containing
// date, in the date's own location. Callers use it to select the entries a
// goal aggregates over.
func PeriodBounds(date time.Time, tf Timeframe, ws WeekStart) (start, end time.Time, err error) {
	switch tf {
	case TimeframeDaily:
		start = startOfDay(date)
		return start, start.AddDate(0, 0, 1), nil
	case TimeframeWeekly:
		start = weekStartDate(date, ws)
		return start, start.AddDate(0, 0, 7), nil
	case TimeframeMonthly:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, tf)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, tf)
	}
}

// weekStartDate returns midnight of the most recent occurrence of the
// week-start day on or before date.
func weekStartDate(date time.Time, ws WeekStart) time.Time {
	startDay := time.Sunday
	if ws == WeekStartMonday {
		startDay = time.Monday
	}
	back := (int(date.Weekday()) - int(startDay) + 7) % 7
	return startOfDay(date).AddDate(0, 0, -back)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
