// Scenario execution pipeline and parallel fan-out
// Runs a command, extracts and normalises spans, validates them and persists artifacts
package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/andrewh/tracecheck/pkg/determinism"
	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/spans"
	"github.com/google/uuid"
)

// Options controls scenario execution.
type Options struct {
	ArtifactDir string       // artifacts are written here when non-empty
	Logger      *slog.Logger // defaults to discarding
	Parallelism int          // ExecuteAll concurrency; 0 means one per scenario
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Result is everything one scenario run produced.
type Result struct {
	RunID        string
	Scenario     string
	StartedAt    time.Time
	Output       Output
	Spans        []spans.Record
	Report       *expect.Report
	ArtifactPath string
}

// FailureError is returned when a scenario ran but its expectations did not
// hold. Err is the first failed check; the full report is in Report.
type FailureError struct {
	Scenario string
	Report   *expect.Report
	Err      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("scenario %q failed (%s): %v", e.Scenario, e.Report.Summary(), e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// ExitError is returned when the scenario command exited non-zero.
type ExitError struct {
	Scenario string
	Code     int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("scenario %q: command exited with code %d", e.Scenario, e.Code)
}

// Execute runs sc and validates the spans it emitted: run the command,
// extract spans from its output, normalise them when determinism is
// configured, validate, then persist artifacts. It returns the Result
// together with a *FailureError or *ExitError when the run did not pass.
// Other errors mean the scenario could not be evaluated, in which case the
// Result may be nil.
func Execute(ctx context.Context, runner Runner, sc *Scenario, opts Options) (*Result, error) {
	logger := opts.logger().With("scenario", sc.Name)

	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Scenario:  sc.Name,
		StartedAt: time.Now().UTC(),
	}

	logger.Info("running scenario", "run_id", res.RunID, "command", sc.Command)
	out, err := runner.Run(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("running scenario %q: %w", sc.Name, err)
	}
	res.Output = out

	records := spans.Extract(out.Combined(), spans.WithLogger(logger))
	logger.Debug("extracted spans", "count", len(records), "exit_code", out.ExitCode)

	if sc.Determinism.IsConfigured() {
		n, err := determinism.New(sc.Determinism)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		n.Apply(records)
	}
	res.Spans = records

	res.Report = expect.NewValidator(sc.Expectations, expect.WithLogger(logger)).ValidateAll(records)

	if opts.ArtifactDir != "" {
		path, err := WriteArtifacts(opts.ArtifactDir, res)
		if err != nil {
			return res, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		res.ArtifactPath = path
		logger.Debug("wrote artifacts", "path", path)
	}

	logger.Info("scenario finished", "summary", res.Report.Summary(), "duration", out.Duration)

	if out.ExitCode != 0 {
		return res, &ExitError{Scenario: sc.Name, Code: out.ExitCode}
	}
	if !res.Report.IsSuccess() {
		return res, &FailureError{Scenario: sc.Name, Report: res.Report, Err: res.Report.FirstError()}
	}
	return res, nil
}

// Outcome pairs a scenario's result with its error.
type Outcome struct {
	Scenario string
	Result   *Result
	Err      error
}

// ExecuteAll runs scenarios concurrently, each with its own normalizer and
// validator, and returns outcomes in input order.
func ExecuteAll(ctx context.Context, runner Runner, scenarios []*Scenario, opts Options) []Outcome {
	outcomes := make([]Outcome, len(scenarios))

	limit := opts.Parallelism
	if limit <= 0 {
		limit = len(scenarios)
	}
	sem := make(chan struct{}, max(limit, 1))

	var wg sync.WaitGroup
	for i, sc := range scenarios {
		wg.Go(func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			res, err := Execute(ctx, runner, sc, opts)
			outcomes[i] = Outcome{Scenario: sc.Name, Result: res, Err: err}
		})
	}
	wg.Wait()
	return outcomes
}
