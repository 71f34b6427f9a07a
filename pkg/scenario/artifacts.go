// Per-run artifact directory holding the report, spans, output and run metadata
// Layout: <root>/<scenario>/<run-id>/
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrewh/tracecheck/pkg/spans"
)

// Artifact file names inside a run directory.
const (
	ReportFile = "report.json"
	SpansFile  = "spans.jsonl"
	OutputFile = "output.log"
	RunFile    = "run.json"
)

// runMeta is the run.json artifact.
type runMeta struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	ExitCode  int       `json:"exit_code"`
	Spans     int       `json:"spans"`
	Passed    bool      `json:"passed"`
	Summary   string    `json:"summary"`
}

// WriteArtifacts stores the report, normalised spans, raw output and run
// metadata under root/<scenario>/<run id>/ and returns that directory.
func WriteArtifacts(root string, res *Result) (string, error) {
	dir := filepath.Join(root, safeName(res.Scenario), res.RunID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}

	report, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	spanLines, err := spans.MarshalArtifact(res.Spans)
	if err != nil {
		return "", fmt.Errorf("encoding spans: %w", err)
	}
	meta, err := json.MarshalIndent(runMeta{
		RunID:     res.RunID,
		Scenario:  res.Scenario,
		StartedAt: res.StartedAt,
		Duration:  res.Output.Duration.String(),
		ExitCode:  res.Output.ExitCode,
		Spans:     len(res.Spans),
		Passed:    res.Report.IsSuccess(),
		Summary:   res.Report.Summary(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run metadata: %w", err)
	}

	files := map[string][]byte{
		ReportFile: append(report, '\n'),
		SpansFile:  spanLines,
		OutputFile: []byte(res.Output.Combined()),
		RunFile:    append(meta, '\n'),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return "", fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return dir, nil
}

// safeName maps a scenario name onto a single path element.
func safeName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
	mapped = strings.Trim(mapped, ".")
	if mapped == "" {
		return "scenario"
	}
	return mapped
}
