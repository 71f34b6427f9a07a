// CLI command for running scenario files end to end
// Scenarios are loaded up front, then executed in parallel
package main

import (
	"errors"
	"fmt"

	"github.com/andrewh/tracecheck/pkg/scenario"
	"github.com/spf13/cobra"
)

func runCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios and validate the spans they emit",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("missing scenario file\n\nUsage: tracecheck run <scenario.yaml>...")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			parallel := a.v.GetInt("parallel")
			if parallel < 0 {
				return fmt.Errorf("--parallel must be non-negative, got %d", parallel)
			}

			// Load everything first so a bad file aborts before any command runs.
			scenarios := make([]*scenario.Scenario, 0, len(args))
			for _, path := range args {
				sc, err := scenario.LoadFile(path)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}

			runner := scenario.ExecRunner{InheritEnv: a.v.GetBool("inherit-env")}
			outcomes := scenario.ExecuteAll(cmd.Context(), runner, scenarios, scenario.Options{
				ArtifactDir: a.v.GetString("artifacts"),
				Logger:      a.logger,
				Parallelism: parallel,
			})

			w := cmd.OutOrStdout()
			var errs []error
			for _, o := range outcomes {
				if o.Result != nil && o.Result.Report != nil {
					writeReport(w, o.Scenario, o.Result.Report)
					if o.Result.ArtifactPath != "" {
						_, _ = fmt.Fprintf(w, "artifacts: %s\n", o.Result.ArtifactPath)
					}
				}
				if o.Err != nil {
					errs = append(errs, o.Err)
				}
			}
			_, _ = fmt.Fprintf(w, "%d/%d scenarios passed\n", len(outcomes)-len(errs), len(outcomes))
			return errors.Join(errs...)
		},
	}

	cmd.Flags().IntP("parallel", "p", 0, "maximum scenarios run at once (0 runs all together)")
	cmd.Flags().Bool("inherit-env", false, "pass the host environment to scenario commands")
	addArtifactsFlag(cmd)

	return cmd
}
