// CLI command for inspecting a capture without expectations
// Prints span trees, per-name statistics and outbound calls to external hosts
package main

import (
	"fmt"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/spans"
	"github.com/spf13/cobra"
)

func inspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [capture]",
		Short: "Show the traces and span counts in captured output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readCapture(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			records := spans.Extract(raw, spans.WithLogger(a.logger))

			w := cmd.OutOrStdout()
			if len(records) == 0 {
				_, _ = fmt.Fprintln(w, "no spans found")
				return nil
			}

			if a.v.GetBool("tree") {
				for _, t := range spans.BuildForest(records, a.logger) {
					_, _ = fmt.Fprintf(w, "trace %s\n", t.TraceID)
					_, _ = fmt.Fprint(w, t.Render())
				}
				_, _ = fmt.Fprintln(w)
			}

			writeSummary(w, spans.Summarise(records))

			var external []string
			for _, r := range records {
				if dest, ok := expect.ExternalDestination(r, nil); ok {
					external = append(external, fmt.Sprintf("%s -> %s", r, dest))
				}
			}
			if len(external) > 0 {
				_, _ = fmt.Fprintln(w, "\nexternal calls:")
				for _, e := range external {
					_, _ = fmt.Fprintf(w, "  %s\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("tree", true, "print the span tree of each trace")

	return cmd
}
