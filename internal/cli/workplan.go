package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/gowe/internal/orchestrator"
	"github.com/me/gowe/internal/workplan"
	"github.com/me/gowe/pkg/model"
)

func newWorkplanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workplan",
		Short: "Validate and run multi-Simulation Workplan documents",
	}
	cmd.AddCommand(newWorkplanCheckCmd(), newWorkplanRunCmd())
	return cmd
}

func newWorkplanCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a Workplan document and its step DAG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wp, err := loadWorkplan(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: valid (%d step(s))\n", args[0], len(wp.Steps))
			return nil
		},
	}
}

func newWorkplanRunCmd() *cobra.Command {
	var runID string
	var force bool

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Drive a Workplan's steps to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wp, err := loadWorkplan(args[0])
			if err != nil {
				return err
			}

			if runID == "" {
				runID = svc.cfg.RunID
			}
			if runID == "" {
				runID = uuid.NewString()
				logger.Info("no run-id given, generated one", "run_id", runID)
			}

			o := orchestrator.New(svc.jobs, svc.runner, logger)
			o.Index = svc.index

			if err := o.Run(cmd.Context(), wp, runID, force); err != nil {
				return err
			}
			fmt.Printf("run %s: complete\n", runID)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run ID (default: CSTAR_RUNID, else a generated UUID)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite a conflicting prior run recorded under this run-id")
	return cmd
}

func loadWorkplan(path string) (*model.Workplan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigurationError{Message: fmt.Sprintf("read workplan: %v", err)}
	}
	return workplan.Parse(raw)
}
