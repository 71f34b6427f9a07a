// Window validator checking that spans start inside an outer span
// A member counts as contained when its start lies within any outer span, bounds inclusive
package expect

import (
	"github.com/andrewh/tracecheck/pkg/spans"
)

// checkWindow requires each span named in w.Contains to start within
// [start, end] of some span named w.Outer. An outer span without both
// timestamps cannot contain anything, and neither can a contained span
// without both timestamps be contained.
func checkWindow(idx *spans.Index, w WindowExpectation) []CheckResult {
	outerName := "window[" + w.Outer + "]"
	outers := idx.ByName(w.Outer)
	if len(outers) == 0 {
		return []CheckResult{fail(outerName, "no span named %q found", w.Outer)}
	}

	type interval struct{ start, end int64 }
	var windows []interval
	for _, i := range outers {
		r := idx.At(i)
		if r.HasTiming() {
			windows = append(windows, interval{r.StartTime.UnixNano(), r.EndTime.UnixNano()})
		}
	}

	results := make([]CheckResult, 0, len(w.Contains))
	for _, name := range w.Contains {
		check := outerName + ".contains[" + name + "]"
		members := idx.ByName(name)
		if len(members) == 0 {
			results = append(results, fail(check, "no span named %q found", name))
			continue
		}
		if len(windows) == 0 {
			results = append(results, fail(check, "%d %q span(s) present but no %q span has both timestamps", len(members), name, w.Outer))
			continue
		}

		var offender *spans.Record
		reason := ""
		outside := 0
		for _, i := range members {
			r := idx.At(i)
			if !r.HasTiming() {
				outside++
				if offender == nil {
					offender, reason = &r, "has no timing"
				}
				continue
			}
			start := r.StartTime.UnixNano()
			inside := false
			for _, win := range windows {
				if start >= win.start && start <= win.end {
					inside = true
					break
				}
			}
			if !inside {
				outside++
				if offender == nil {
					offender, reason = &r, "starts outside every "+w.Outer+" span"
				}
			}
		}
		if offender != nil {
			results = append(results, fail(check, "%d of %d %q span(s) not contained; first: %s %s", outside, len(members), name, *offender, reason))
			continue
		}
		results = append(results, pass(check, "all %d %q span(s) start within %q", len(members), name, w.Outer))
	}
	return results
}
