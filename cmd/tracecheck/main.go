// Hermetic trace validation CLI
// Checks span captures against declarative expectations and runs scenarios
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries settings resolved from flags and TRACECHECK_* environment
// variables. One is built per root command so tests can run in parallel.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("TRACECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "warn")
	return &app{
		v:      v,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func rootCmd() *cobra.Command {
	a := newApp()

	root := &cobra.Command{
		Use:          "tracecheck",
		Short:        "Validate the spans a hermetic test emitted",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}
			return a.configureLogging(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolP("verbose", "v", false, "shorthand for --log-level debug")

	root.AddCommand(validateCmd(a))
	root.AddCommand(runCmd(a))
	root.AddCommand(inspectCmd(a))
	root.AddCommand(versionCmd())

	return root
}

func (a *app) configureLogging(w io.Writer) error {
	level := a.v.GetString("log-level")
	if a.v.GetBool("verbose") {
		level = "debug"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q, valid levels: debug, info, warn, error", level)
	}
	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracecheck %s (commit: %s, built: %s)\n", version, commit, buildTime)
		},
	}
}
