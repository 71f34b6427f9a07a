// Validation report with per-check outcomes and a JSON form
// A report is immutable once built; FirstError surfaces the earliest failure
package expect

import (
	"encoding/json"
	"fmt"
	"slices"
)

// CheckResult is the outcome of one atomic check.
type CheckResult struct {
	Name    string `json:"check_name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

func pass(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

// CheckFailure is the error form of a failed check.
type CheckFailure struct {
	Check   string
	Message string
}

func (e *CheckFailure) Error() string {
	return e.Check + ": " + e.Message
}

// Report is the verdict for one capture. It is not modified after
// ValidateAll returns it.
type Report struct {
	checks []CheckResult
}

func newReport(checks []CheckResult) *Report {
	return &Report{checks: checks}
}

// Checks returns a copy of the recorded outcomes in evaluation order.
func (r *Report) Checks() []CheckResult {
	return slices.Clone(r.checks)
}

// PassCount returns the number of passed checks.
func (r *Report) PassCount() int {
	n := 0
	for _, c := range r.checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed checks.
func (r *Report) FailureCount() int {
	return len(r.checks) - r.PassCount()
}

// IsSuccess reports whether no check failed.
func (r *Report) IsSuccess() bool {
	return r.FailureCount() == 0
}

// Summary returns e.g. "3/5 checks passed".
func (r *Report) Summary() string {
	return fmt.Sprintf("%d/%d checks passed", r.PassCount(), len(r.checks))
}

// FirstError returns the first failed check as an error, or nil.
func (r *Report) FirstError() error {
	for _, c := range r.checks {
		if !c.Passed {
			return &CheckFailure{Check: c.Name, Message: c.Message}
		}
	}
	return nil
}

// Failures returns the failed checks in evaluation order.
func (r *Report) Failures() []CheckResult {
	var out []CheckResult
	for _, c := range r.checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

type reportJSON struct {
	Checks       []CheckResult `json:"checks"`
	PassCount    int           `json:"pass_count"`
	FailureCount int           `json:"failure_count"`
	Summary      string        `json:"summary"`
}

// MarshalJSON encodes the checks with their derived counts and summary.
func (r *Report) MarshalJSON() ([]byte, error) {
	checks := r.checks
	if checks == nil {
		checks = []CheckResult{}
	}
	return json.Marshal(reportJSON{
		Checks:       checks,
		PassCount:    r.PassCount(),
		FailureCount: r.FailureCount(),
		Summary:      r.Summary(),
	})
}

// UnmarshalJSON restores a report from its artifact form. Derived fields
// are recomputed from the checks.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw reportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.checks = raw.Checks
	return nil
}
