// CLI command for validating a captured span stream against expectations
// Reads a capture file or stdin and exits non-zero on the first failed check
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrewh/tracecheck/pkg/determinism"
	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/scenario"
	"github.com/andrewh/tracecheck/pkg/spans"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func validateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate --expect <expect.yaml> [capture]",
		Short: "Validate captured span output against expectations",
		Long: `Reads captured process output from a file, or stdin when no file is given,
extracts the spans in it and checks them against an expectations file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expectPath := a.v.GetString("expect")
			if expectPath == "" {
				return fmt.Errorf("missing expectations file\n\nUsage: tracecheck validate --expect <expect.yaml> [capture]")
			}
			exp, err := expect.LoadConfig(expectPath)
			if err != nil {
				return err
			}

			det, err := determinismFlags(a)
			if err != nil {
				return err
			}

			raw, err := readCapture(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			records := spans.Extract(raw, spans.WithLogger(a.logger))
			a.logger.Info("extracted spans", "count", len(records))
			if det.IsConfigured() {
				n, err := determinism.New(det)
				if err != nil {
					return err
				}
				n.Apply(records)
			}

			report := expect.NewValidator(exp, expect.WithLogger(a.logger)).ValidateAll(records)

			w := cmd.OutOrStdout()
			if a.v.GetBool("json") {
				if err := writeReportJSON(w, report); err != nil {
					return err
				}
			} else {
				writeReport(w, "", report)
			}

			if dir := a.v.GetString("artifacts"); dir != "" {
				name := strings.TrimSuffix(filepath.Base(expectPath), filepath.Ext(expectPath))
				path, err := scenario.WriteArtifacts(dir, &scenario.Result{
					RunID:     uuid.NewString(),
					Scenario:  name,
					StartedAt: time.Now().UTC(),
					Output:    scenario.Output{Stdout: []byte(raw)},
					Spans:     records,
					Report:    report,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "artifacts: %s\n", path)
			}

			return report.FirstError()
		},
	}

	cmd.Flags().StringP("expect", "e", "", "expectations YAML file")
	cmd.Flags().Bool("json", false, "print the report as JSON")
	addDeterminismFlags(cmd)
	addArtifactsFlag(cmd)

	return cmd
}

func addDeterminismFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("seed", 0, "seed for filling missing span ids")
	cmd.Flags().String("freeze-clock", "", "timestamp used for missing span start times (RFC 3339 or Unix ns)")
}

func addArtifactsFlag(cmd *cobra.Command) {
	cmd.Flags().String("artifacts", "", "directory to write run artifacts to")
}

// determinismFlags builds a determinism config from --seed and
// --freeze-clock. The seed only counts when set by flag or environment.
func determinismFlags(a *app) (determinism.Config, error) {
	var cfg determinism.Config
	if a.v.IsSet("seed") {
		seed := a.v.GetUint64("seed")
		cfg.Seed = &seed
	}
	cfg.FreezeClock = a.v.GetString("freeze-clock")
	if _, err := determinism.New(cfg); err != nil {
		return determinism.Config{}, err
	}
	return cfg, nil
}

func readCapture(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading capture from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0]) //nolint:gosec // user-supplied capture path is expected
	if err != nil {
		return "", fmt.Errorf("reading capture: %w", err)
	}
	return string(data), nil
}
