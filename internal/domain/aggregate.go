package domain

// Aggregate reduces one period's entries to the goal's achieved amount.
//
// The caller is responsible for the period restriction: entries must already
// be the goal's measure's entries, owned by the goal's user, with dates
// inside the bounds PeriodBounds reported. Aggregate itself is pure.
//
// TOTAL sums entry values. COUNT counts entries, skipping those below
// MinPerEntry when a floor is set. An empty slice yields 0 either way.
func Aggregate(g Goal, entries []Entry) float64 {
	switch g.Type {
	case GoalTotal:
		var sum float64
		for _, e := range entries {
			sum += e.Value
		}
		return sum
	case GoalCount:
		var n int
		for _, e := range entries {
			if g.MinPerEntry != nil && e.Value < *g.MinPerEntry {
				continue
			}
			n++
		}
		return float64(n)
	default:
		// Unknown goal types aggregate to zero rather than crediting
		// anything by accident.
		return 0
	}
}
