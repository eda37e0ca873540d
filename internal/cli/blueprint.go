package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gowe/internal/blueprintcodec"
	"github.com/me/gowe/pkg/model"
)

func newBlueprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blueprint",
		Short: "Validate and run single-Simulation Blueprint documents",
	}
	cmd.AddCommand(newBlueprintCheckCmd(), newBlueprintRunCmd())
	return cmd
}

func newBlueprintCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a Blueprint document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := os.ReadFile(path)
			if err != nil {
				return &model.ConfigurationError{Message: fmt.Sprintf("read blueprint: %v", err)}
			}
			bp, err := blueprintcodec.New().Parse(raw, filepath.Dir(path))
			if err != nil {
				return err
			}
			schema := "modern"
			if bp.Legacy {
				schema = "legacy"
			}
			fmt.Printf("%s: valid (%s schema, %d dataset(s), %s to %s)\n",
				path, schema, len(bp.Datasets),
				bp.ValidDateRange.Start.Format("2006-01-02"), bp.ValidDateRange.End.Format("2006-01-02"))
			return nil
		},
	}
}

func newBlueprintRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <path>",
		Short: "Run a single-Simulation Blueprint to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			step := model.Step{Name: name, Application: "roms_marbl", Blueprint: path}

			ctx := cmd.Context()
			h, scriptPath, err := svc.runner.Dispatch(ctx, step, step.Name)
			if err != nil {
				return err
			}
			logger.Info("submitted", "step", step.Name, "handler_id", h.ID(), "script", scriptPath)

			// A terminal status is only acted on once the same one is
			// read on two consecutive polls: a handler may briefly
			// misreport COMPLETED/FAILED around a real state transition.
			var pending model.JobStatus
			for {
				status, err := h.Status(ctx)
				if err != nil {
					return err
				}

				terminal := status == model.JobStatusCompleted || status == model.JobStatusFailed || status == model.JobStatusCancelled
				if !terminal {
					pending = ""
				} else if pending != status {
					pending = status
				} else {
					pending = ""
					switch status {
					case model.JobStatusCompleted:
						rec := model.StepRecord{HandlerID: h.ID(), ScriptPath: scriptPath, OutputPath: h.OutputFile()}
						if err := svc.runner.Finalize(ctx, step, rec); err != nil {
							return err
						}
						fmt.Printf("%s: COMPLETED\n", step.Name)
						return nil
					case model.JobStatusFailed, model.JobStatusCancelled:
						return fmt.Errorf("cli: step %s ended %s", step.Name, status)
					}
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Second):
				}
			}
		},
	}
}
