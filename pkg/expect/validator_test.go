// Tests for graph, count and window checks and the combined report
package expect

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andrewh/tracecheck/pkg/spans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func span(id, parent, name string, start, end int64) spans.Record {
	r := spans.Record{
		ID:         id,
		ParentID:   parent,
		Name:       name,
		Attributes: map[string]string{},
		Resource:   map[string]string{},
	}
	if start != 0 {
		r.StartTime = time.Unix(0, start).UTC()
	}
	if end != 0 {
		r.EndTime = time.Unix(0, end).UTC()
	}
	return r
}

func rootChild() []spans.Record {
	return []spans.Record{
		span("a", "", "root", 100, 500),
		span("b", "a", "child", 150, 300),
	}
}

func totalEq(n int) Expectations {
	b := Eq(n)
	return Expectations{Counts: &CountExpectation{SpansTotal: &b}}
}

func TestValidateAll_EndToEnd(t *testing.T) {
	records := rootChild()

	graph := ValidateAll(records, Expectations{Graph: &GraphExpectation{
		MustInclude: []EdgePair{{Ancestor: "root", Descendant: "child"}},
	}})
	assert.True(t, graph.IsSuccess(), graph.Checks())

	window := ValidateAll(records, Expectations{Windows: []WindowExpectation{{Outer: "root", Contains: []string{"child"}}}})
	assert.True(t, window.IsSuccess(), window.Checks())

	assert.True(t, ValidateAll(records, totalEq(2)).IsSuccess())

	wrong := ValidateAll(records, totalEq(3))
	require.False(t, wrong.IsSuccess())
	failures := wrong.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "counts.spans_total", failures[0].Name)
	assert.Contains(t, failures[0].Message, "expected 3, got 2")
}

func TestValidateAll_EmptySet(t *testing.T) {
	b := Gte(1)
	counts := ValidateAll(nil, Expectations{Counts: &CountExpectation{SpansTotal: &b}})
	assert.False(t, counts.IsSuccess())

	graph := ValidateAll(nil, Expectations{Graph: &GraphExpectation{
		MustInclude: []EdgePair{{Ancestor: "x", Descendant: "y"}, {Ancestor: "y", Descendant: "y"}},
	}})
	assert.Equal(t, 0, graph.PassCount())
	assert.Equal(t, 2, graph.FailureCount())

	hermetic := ValidateAll(nil, Expectations{Hermeticity: &HermeticityExpectation{NoExternalServices: true}})
	assert.True(t, hermetic.IsSuccess())
	assert.Equal(t, 1, hermetic.PassCount())
}

func TestValidateAll_NoExpectations(t *testing.T) {
	report := ValidateAll(rootChild(), Expectations{})
	assert.True(t, report.IsSuccess())
	assert.Empty(t, report.Checks())
	assert.Equal(t, "0/0 checks passed", report.Summary())
	assert.NoError(t, report.FirstError())
}

func TestValidateAll_CollectsEveryFailure(t *testing.T) {
	total := Eq(5)
	exp := Expectations{
		Graph: &GraphExpectation{MustInclude: []EdgePair{{Ancestor: "missing", Descendant: "child"}}},
		Counts: &CountExpectation{
			SpansTotal: &total,
			ByName:     map[string]Bound{"root": Eq(1), "child": Gte(2)},
		},
		Windows: []WindowExpectation{{Outer: "nope", Contains: []string{"child"}}},
	}
	report := ValidateAll(rootChild(), exp)

	var names []string
	for _, c := range report.Checks() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"graph.must_include[missing -> child]",
		"counts.spans_total",
		"counts.by_name[child]",
		"counts.by_name[root]",
		"window[nope]",
	}, names)
	assert.Equal(t, 1, report.PassCount())
	assert.Equal(t, "1/5 checks passed", report.Summary())

	err := report.FirstError()
	require.Error(t, err)
	var cf *CheckFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "graph.must_include[missing -> child]", cf.Check)
}

func TestGraph_MustInclude(t *testing.T) {
	records := []spans.Record{
		span("a", "", "root", 0, 0),
		span("b", "a", "mid", 0, 0),
		span("c", "b", "leaf", 0, 0),
		span("d", "", "leaf", 0, 0),
		span("e", "gone", "orphan", 0, 0),
	}

	tests := []struct {
		name    string
		pair    EdgePair
		pass    bool
		message string
	}{
		{"direct parent", EdgePair{"mid", "leaf"}, true, ""},
		{"transitive", EdgePair{"root", "leaf"}, true, ""},
		{"reverse direction", EdgePair{"leaf", "root"}, false, "in its ancestor chain"},
		{"missing ancestor", EdgePair{"ghost", "leaf"}, false, `no span named "ghost"`},
		{"missing descendant", EdgePair{"root", "ghost"}, false, `no span named "ghost"`},
		{"self pair", EdgePair{"root", "root"}, false, "in its ancestor chain"},
		{"dangling parent", EdgePair{"root", "orphan"}, false, "in its ancestor chain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ValidateAll(records, Expectations{Graph: &GraphExpectation{MustInclude: []EdgePair{tt.pair}}})
			checks := report.Checks()
			require.Len(t, checks, 1)
			assert.Equal(t, tt.pass, checks[0].Passed, checks[0].Message)
			assert.Contains(t, checks[0].Message, tt.message)
		})
	}
}

func TestGraph_MustNotInclude(t *testing.T) {
	records := rootChild()
	report := ValidateAll(records, Expectations{Graph: &GraphExpectation{
		MustNotInclude: []EdgePair{{"root", "child"}, {"child", "root"}, {"ghost", "child"}},
	}})
	checks := report.Checks()
	require.Len(t, checks, 3)
	assert.False(t, checks[0].Passed)
	assert.Contains(t, checks[0].Message, "child (id b)")
	assert.True(t, checks[1].Passed)
	assert.True(t, checks[2].Passed)
}

func TestGraph_CycleTerminates(t *testing.T) {
	records := []spans.Record{
		span("a", "c", "A", 0, 0),
		span("b", "a", "B", 0, 0),
		span("c", "b", "C", 0, 0),
	}
	report := ValidateAll(records, Expectations{Graph: &GraphExpectation{
		MustInclude: []EdgePair{{"A", "C"}, {"Z", "A"}},
	}})
	checks := report.Checks()
	require.Len(t, checks, 2)
	assert.True(t, checks[0].Passed)
	assert.False(t, checks[1].Passed)
}

func TestGraph_MissingAncestorAlwaysFailsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := genCapture(t)
		descendant := rapid.SampledFrom(spanNames).Draw(t, "descendant")
		report := ValidateAll(records, Expectations{Graph: &GraphExpectation{
			MustInclude: []EdgePair{{Ancestor: "absent", Descendant: descendant}},
		}})
		if report.IsSuccess() {
			t.Fatalf("pair with absent ancestor passed: %v", report.Checks())
		}
	})
}

func TestCounts(t *testing.T) {
	records := []spans.Record{
		span("1", "", "a", 0, 0),
		span("2", "", "a", 0, 0),
		span("3", "", "b", 0, 0),
	}
	r, err := NewRange(1, 2)
	require.NoError(t, err)
	report := ValidateAll(records, Expectations{Counts: &CountExpectation{
		ByName: map[string]Bound{"a": r, "b": Gte(2), "c": Lte(0)},
	}})
	checks := report.Checks()
	require.Len(t, checks, 3)
	assert.True(t, checks[0].Passed)
	assert.Equal(t, "got 2, expected between 1 and 2", checks[0].Message)
	assert.False(t, checks[1].Passed)
	assert.Equal(t, "expected at least 2, got 1", checks[1].Message)
	assert.True(t, checks[2].Passed, "absent names count as zero")
}

func TestCounts_DuplicateIDsStillCounted(t *testing.T) {
	records := []spans.Record{span("a", "", "x", 0, 0), span("a", "", "x", 0, 0)}
	assert.True(t, ValidateAll(records, totalEq(2)).IsSuccess())
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name    string
		records []spans.Record
		pass    bool
		message string
	}{
		{
			name:    "start on outer boundary",
			records: []spans.Record{span("o", "", "outer", 100, 200), span("i", "", "inner", 200, 300)},
			pass:    true,
		},
		{
			name:    "starts before outer",
			records: []spans.Record{span("o", "", "outer", 100, 200), span("i", "", "inner", 99, 150)},
			message: "starts outside every outer span",
		},
		{
			name: "second outer window",
			records: []spans.Record{
				span("o1", "", "outer", 100, 200),
				span("o2", "", "outer", 1000, 2000),
				span("i", "", "inner", 1500, 1600),
			},
			pass: true,
		},
		{
			name:    "inner without timing",
			records: []spans.Record{span("o", "", "outer", 100, 200), span("i", "", "inner", 0, 0)},
			message: "has no timing",
		},
		{
			name:    "outer without timing",
			records: []spans.Record{span("o", "", "outer", 100, 0), span("i", "", "inner", 150, 160)},
			message: "has both timestamps",
		},
		{
			name:    "no inner span",
			records: []spans.Record{span("o", "", "outer", 100, 200)},
			message: `no span named "inner"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ValidateAll(tt.records, Expectations{Windows: []WindowExpectation{{Outer: "outer", Contains: []string{"inner"}}}})
			checks := report.Checks()
			require.Len(t, checks, 1)
			assert.Equal(t, "window[outer].contains[inner]", checks[0].Name)
			assert.Equal(t, tt.pass, checks[0].Passed, checks[0].Message)
			assert.Contains(t, checks[0].Message, tt.message)
		})
	}
}

func TestWindow_UntimedOuterFailsEveryName(t *testing.T) {
	records := []spans.Record{
		span("o", "", "outer", 0, 0),
		span("x", "", "x", 10, 20),
		span("y", "", "y", 10, 20),
	}
	report := ValidateAll(records, Expectations{Windows: []WindowExpectation{{Outer: "outer", Contains: []string{"x", "y"}}}})
	assert.Equal(t, 2, report.FailureCount())
	assert.Equal(t, 0, report.PassCount())
}

func TestWindow_MissingOuter(t *testing.T) {
	report := ValidateAll(rootChild(), Expectations{Windows: []WindowExpectation{{Outer: "ghost", Contains: []string{"child", "root"}}}})
	checks := report.Checks()
	require.Len(t, checks, 1)
	assert.Equal(t, "window[ghost]", checks[0].Name)
	assert.False(t, checks[0].Passed)
}

var spanNames = []string{"root", "http", "db", "cache", "queue"}

// genCapture draws a forest of spans with optional timing and attributes.
func genCapture(t *rapid.T) []spans.Record {
	n := rapid.IntRange(0, 15).Draw(t, "n")
	records := make([]spans.Record, 0, n)
	for i := range n {
		id := fmt.Sprintf("s%d", i)
		parent := ""
		if i > 0 && rapid.Bool().Draw(t, "hasParent") {
			parent = fmt.Sprintf("s%d", rapid.IntRange(0, n).Draw(t, "parent"))
		}
		var start, end int64
		if rapid.Bool().Draw(t, "timed") {
			start = rapid.Int64Range(1, 1000).Draw(t, "start")
			end = start + rapid.Int64Range(0, 1000).Draw(t, "dur")
		}
		r := span(id, parent, rapid.SampledFrom(spanNames).Draw(t, "name"), start, end)
		if rapid.Bool().Draw(t, "secret") {
			r.Attributes["user.email"] = "x@example.com"
		}
		records = append(records, r)
	}
	return records
}

func genExpectations(t *rapid.T) Expectations {
	name := func(label string) string { return rapid.SampledFrom(spanNames).Draw(t, label) }
	total := Gte(rapid.IntRange(0, 5).Draw(t, "total"))
	return Expectations{
		Graph: &GraphExpectation{
			MustInclude:    []EdgePair{{name("a1"), name("d1")}},
			MustNotInclude: []EdgePair{{name("a2"), name("d2")}},
		},
		Counts:  &CountExpectation{SpansTotal: &total, ByName: map[string]Bound{name("c1"): Lte(3), name("c2"): Eq(1)}},
		Windows: []WindowExpectation{{Outer: name("o"), Contains: []string{name("w1"), name("w2")}}},
		Hermeticity: &HermeticityExpectation{
			NoExternalServices:  true,
			SpanAttrsForbidKeys: []string{"user.email"},
		},
	}
}

func TestValidateAll_PurityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := genCapture(t)
		exp := genExpectations(t)
		before := make([]spans.Record, len(records))
		for i, r := range records {
			before[i] = r.Clone()
		}

		v := NewValidator(exp)
		first := v.ValidateAll(records)
		second := v.ValidateAll(records)

		if !assert.ObjectsAreEqual(first.Checks(), second.Checks()) {
			t.Fatalf("reports differ:\n%v\n%v", first.Checks(), second.Checks())
		}
		if !assert.ObjectsAreEqual(before, records) {
			t.Fatalf("validation mutated its input")
		}
		if first.PassCount()+first.FailureCount() != len(first.Checks()) {
			t.Fatalf("counts do not add up: %s", first.Summary())
		}
		if first.IsSuccess() != (first.FirstError() == nil) {
			t.Fatalf("IsSuccess and FirstError disagree")
		}
		if !strings.HasSuffix(first.Summary(), "checks passed") {
			t.Fatalf("unexpected summary %q", first.Summary())
		}
	})
}
