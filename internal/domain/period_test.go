package domain

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, time.UTC)
}

func TestPeriodKey_Daily(t *testing.T) {
	key, err := PeriodKey(date(2024, time.March, 9), TimeframeDaily, WeekStartSunday)
	if err != nil {
		t.Fatalf("PeriodKey() error: %v", err)
	}
	if key != "2024-03-09" {
		t.Errorf("key = %q, want %q", key, "2024-03-09")
	}
}

func TestPeriodKey_Daily_IgnoresWeekStart(t *testing.T) {
	d := date(2024, time.March, 9)
	sun, _ := PeriodKey(d, TimeframeDaily, WeekStartSunday)
	mon, _ := PeriodKey(d, TimeframeDaily, WeekStartMonday)
	if sun != mon {
		t.Errorf("daily keys differ by week start: %q vs %q", sun, mon)
	}
}

func TestPeriodKey_Weekly_StableWithinWeek(t *testing.T) {
	// 2024-03-10 is a Sunday. Every day through Saturday the 16th shares
	// its week under the Sunday convention.
	want := "WEEK-2024-03-10"
	for d := 10; d <= 16; d++ {
		key, err := PeriodKey(date(2024, time.March, d), TimeframeWeekly, WeekStartSunday)
		if err != nil {
			t.Fatalf("PeriodKey() error: %v", err)
		}
		if key != want {
			t.Errorf("day %d: key = %q, want %q", d, key, want)
		}
	}
}

func TestPeriodKey_Weekly_DiffersAcrossWeeks(t *testing.T) {
	w1, _ := PeriodKey(date(2024, time.March, 16), TimeframeWeekly, WeekStartSunday)
	w2, _ := PeriodKey(date(2024, time.March, 17), TimeframeWeekly, WeekStartSunday)
	if w1 == w2 {
		t.Errorf("adjacent weeks share key %q", w1)
	}
}

func TestPeriodKey_Weekly_WeekStartSensitivity(t *testing.T) {
	// 2024-03-16 is a Saturday: last day of a Sunday-start week, sixth day
	// of a Monday-start week — different anchors, different keys.
	d := date(2024, time.March, 16)
	sun, _ := PeriodKey(d, TimeframeWeekly, WeekStartSunday)
	mon, _ := PeriodKey(d, TimeframeWeekly, WeekStartMonday)
	if sun == mon {
		t.Fatalf("week start ignored: both conventions gave %q", sun)
	}
	if sun != "WEEK-2024-03-10" {
		t.Errorf("sunday key = %q, want WEEK-2024-03-10", sun)
	}
	if mon != "WEEK-2024-03-11" {
		t.Errorf("monday key = %q, want WEEK-2024-03-11", mon)
	}

	// A Sunday is the 1st day under SUNDAY and the 7th under MONDAY.
	d = date(2024, time.March, 17)
	sun, _ = PeriodKey(d, TimeframeWeekly, WeekStartSunday)
	mon, _ = PeriodKey(d, TimeframeWeekly, WeekStartMonday)
	if sun == mon {
		t.Errorf("sunday date maps to same key under both conventions: %q", sun)
	}
}

func TestPeriodKey_Monthly_Unsupported(t *testing.T) {
	_, err := PeriodKey(date(2024, time.March, 9), TimeframeMonthly, WeekStartSunday)
	if !errors.Is(err, ErrUnsupportedTimeframe) {
		t.Errorf("err = %v, want ErrUnsupportedTimeframe", err)
	}
}

func TestPeriodBounds_Daily(t *testing.T) {
	start, end, err := PeriodBounds(date(2024, time.March, 9), TimeframeDaily, WeekStartSunday)
	if err != nil {
		t.Fatalf("PeriodBounds() error: %v", err)
	}
	if start.Hour() != 0 || start.Day() != 9 {
		t.Errorf("start = %v, want midnight of the 9th", start)
	}
	if got := end.Sub(start); got != 24*time.Hour {
		t.Errorf("window = %v, want 24h", got)
	}
}

func TestPeriodBounds_Weekly(t *testing.T) {
	start, end, err := PeriodBounds(date(2024, time.March, 13), TimeframeWeekly, WeekStartMonday)
	if err != nil {
		t.Fatalf("PeriodBounds() error: %v", err)
	}
	if start.Weekday() != time.Monday {
		t.Errorf("start weekday = %v, want Monday", start.Weekday())
	}
	if got := end.Sub(start); got != 7*24*time.Hour {
		t.Errorf("window = %v, want 168h", got)
	}
	if !start.Before(date(2024, time.March, 13)) {
		t.Error("start should precede the queried date")
	}
}

func TestPeriodBounds_Monthly_Unsupported(t *testing.T) {
	_, _, err := PeriodBounds(date(2024, time.March, 9), TimeframeMonthly, WeekStartSunday)
	if !errors.Is(err, ErrUnsupportedTimeframe) {
		t.Errorf("err = %v, want ErrUnsupportedTimeframe", err)
	}
}
