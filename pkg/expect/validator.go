// Validation entry point folding every configured check into one report
// No check short-circuits another, so a report always lists all outcomes
package expect

import (
	"io"
	"log/slog"

	"github.com/andrewh/tracecheck/pkg/spans"
)

// checkFunc evaluates one expectation against an indexed capture.
type checkFunc func(idx *spans.Index) []CheckResult

// Validator runs every configured expectation against a capture. It holds
// no per-run state and may be shared between goroutines.
type Validator struct {
	exp    Expectations
	checks []checkFunc
	logger *slog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithLogger sets the logger used for capture diagnostics such as
// duplicate span ids.
func WithLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewValidator prepares the checks for exp.
func NewValidator(exp Expectations, opts ...ValidatorOption) *Validator {
	v := &Validator{
		exp:    exp,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}

	if g := exp.Graph; g != nil {
		v.checks = append(v.checks, func(idx *spans.Index) []CheckResult { return checkGraph(idx, g) })
	}
	if c := exp.Counts; c != nil {
		v.checks = append(v.checks, func(idx *spans.Index) []CheckResult { return checkCounts(idx, c) })
	}
	for _, w := range exp.Windows {
		v.checks = append(v.checks, func(idx *spans.Index) []CheckResult { return checkWindow(idx, w) })
	}
	if h := exp.Hermeticity; h != nil {
		v.checks = append(v.checks, func(idx *spans.Index) []CheckResult { return checkHermeticity(idx, h) })
	}
	return v
}

// Expectations returns the expectations the validator was built from.
func (v *Validator) Expectations() Expectations { return v.exp }

// ValidateAll evaluates every check against records and returns the
// combined report. No check stops another from running, and records are
// only read.
func (v *Validator) ValidateAll(records []spans.Record) *Report {
	idx := spans.NewIndex(records, v.logger)

	var results []CheckResult
	for _, check := range v.checks {
		results = append(results, check(idx)...)
	}

	report := newReport(results)
	v.logger.Debug("validated capture",
		"spans", idx.Len(), "checks", len(results), "failures", report.FailureCount())
	return report
}

// ValidateAll is a convenience for one-off validation.
func ValidateAll(records []spans.Record, exp Expectations) *Report {
	return NewValidator(exp).ValidateAll(records)
}
