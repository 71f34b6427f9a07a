// Count validator for total and per-name span counts
// Each configured bound yields its own check result
package expect

import (
	"slices"

	"github.com/andrewh/tracecheck/pkg/spans"
)

// checkCounts evaluates every configured bound, one result per bound.
// Per-name results are ordered by span name.
func checkCounts(idx *spans.Index, c *CountExpectation) []CheckResult {
	results := make([]CheckResult, 0, len(c.ByName)+1)

	if c.SpansTotal != nil {
		results = append(results, checkBound("counts.spans_total", *c.SpansTotal, idx.Len()))
	}

	names := make([]string, 0, len(c.ByName))
	for name := range c.ByName {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		results = append(results, checkBound("counts.by_name["+name+"]", c.ByName[name], idx.CountName(name)))
	}
	return results
}

func checkBound(name string, b Bound, actual int) CheckResult {
	if b.Contains(actual) {
		return pass(name, "got %d, expected %s", actual, b)
	}
	return fail(name, "%s", b.mismatch(actual))
}
