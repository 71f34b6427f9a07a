// Graph validator for ancestor/descendant expectations
// Ancestry follows ParentID links through the index with a bounded, cycle-safe walk
package expect

import (
	"github.com/andrewh/tracecheck/pkg/spans"
)

// checkGraph evaluates every declared pair against the capture's ancestry.
func checkGraph(idx *spans.Index, g *GraphExpectation) []CheckResult {
	results := make([]CheckResult, 0, len(g.MustInclude)+len(g.MustNotInclude))
	for _, p := range g.MustInclude {
		results = append(results, checkMustInclude(idx, p))
	}
	for _, p := range g.MustNotInclude {
		results = append(results, checkMustNotInclude(idx, p))
	}
	return results
}

// checkMustInclude passes when at least one span named p.Descendant has a
// span named p.Ancestor somewhere in its parent chain.
func checkMustInclude(idx *spans.Index, p EdgePair) CheckResult {
	name := "graph.must_include[" + p.String() + "]"

	descendants := idx.ByName(p.Descendant)
	if len(descendants) == 0 {
		return fail(name, "no span named %q found, so %q cannot be its ancestor", p.Descendant, p.Ancestor)
	}
	if idx.CountName(p.Ancestor) == 0 {
		return fail(name, "no span named %q found (needed as ancestor of %q)", p.Ancestor, p.Descendant)
	}
	for _, i := range descendants {
		if idx.HasAncestorNamed(i, p.Ancestor) {
			return pass(name, "%q has ancestor %q", p.Descendant, p.Ancestor)
		}
	}
	return fail(name, "none of %d %q span(s) has %q in its ancestor chain", len(descendants), p.Descendant, p.Ancestor)
}

// checkMustNotInclude fails when any span named p.Descendant descends from
// a span named p.Ancestor.
func checkMustNotInclude(idx *spans.Index, p EdgePair) CheckResult {
	name := "graph.must_not_include[" + p.String() + "]"
	for _, i := range idx.ByName(p.Descendant) {
		if idx.HasAncestorNamed(i, p.Ancestor) {
			return fail(name, "span %s has forbidden ancestor %q", idx.At(i), p.Ancestor)
		}
	}
	return pass(name, "no %q span descends from %q", p.Descendant, p.Ancestor)
}
