// Per-name summary statistics over a capture
// Feeds the inspect view: span counts and duration spread by name
package spans

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// NameStats summarises all records sharing one span name.
type NameStats struct {
	Name      string
	Count     int
	Untimed   int // records missing either timestamp
	Durations []time.Duration
}

// Summarise groups records by name and returns stats sorted by name.
func Summarise(records []Record) []NameStats {
	byName := make(map[string]*NameStats)
	for _, r := range records {
		st, ok := byName[r.Name]
		if !ok {
			st = &NameStats{Name: r.Name}
			byName[r.Name] = st
		}
		st.Count++
		if !r.HasTiming() {
			st.Untimed++
			continue
		}
		st.Durations = append(st.Durations, r.EndTime.Sub(r.StartTime))
	}

	out := make([]NameStats, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b NameStats) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// MeanDuration computes the mean of a duration slice.
// Uses float64 accumulator to avoid int64 overflow on large inputs.
func MeanDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var sum float64
	for _, d := range durations {
		sum += float64(d)
	}
	return time.Duration(sum / float64(len(durations)))
}

// StdDevDuration computes the sample standard deviation of a duration slice.
func StdDevDuration(durations []time.Duration) time.Duration {
	if len(durations) < 2 {
		return 0
	}
	mean := float64(MeanDuration(durations))
	var sumSq float64
	for _, d := range durations {
		diff := float64(d) - mean
		sumSq += diff * diff
	}
	return time.Duration(math.Sqrt(sumSq / float64(len(durations)-1)))
}

// MaxDuration returns the largest duration, or 0 for an empty slice.
func MaxDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	return slices.Max(durations)
}
