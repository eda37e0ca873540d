// Package cli implements the cstar command-line surface: one cobra
// subcommand family per external interface (blueprint, workplan, env),
// sharing a single *services instance built once from the resolved
// Config, the same persistent-flags-plus-PersistentPreRun shape the
// teacher's internal/cli uses to share its logger and API client.
package cli

import (
	"log/slog"

	"github.com/me/gowe/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	svc    *services
)

// NewRootCmd creates the root cobra command for the cstar CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cstar",
		Short: "C-Star — reproducible regional ocean simulation orchestration",
		Long: "C-Star resolves External Codebases and Input Datasets, builds and runs\n" +
			"ROMS+MARBL Simulations, and drives multi-step Workplans to completion\n" +
			"on a laptop, Slurm cluster, or PBS cluster.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)

			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			svc, err = newServices(cfg, logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if svc != nil {
				svc.Close()
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newBlueprintCmd(),
		newWorkplanCmd(),
		newEnvCmd(),
	)

	return root
}
