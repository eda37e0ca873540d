package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect the resolved cstar configuration",
	}
	cmd.AddCommand(newEnvShowCmd())
	return cmd
}

func newEnvShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := svc.cfg
			fmt.Printf("CSTAR_HOME                  %s\n", cfg.Home)
			fmt.Printf("CSTAR_OUTDIR                 %s\n", cfg.OutDir)
			fmt.Printf("CSTAR_NPROCS_POST            %d\n", cfg.NProcsPost)
			fmt.Printf("CSTAR_FRESH_CODEBASES        %t\n", cfg.FreshCodebases)
			fmt.Printf("CSTAR_CLOBBER_WORKING_DIR    %t\n", cfg.ClobberWorkingDir)
			fmt.Printf("CSTAR_SLURM_ACCOUNT          %s\n", cfg.SlurmAccount)
			fmt.Printf("CSTAR_SLURM_QUEUE            %s\n", cfg.SlurmQueue)
			fmt.Printf("CSTAR_SLURM_MAX_WALLTIME     %s\n", cfg.SlurmMaxWalltime)
			fmt.Printf("CSTAR_RUNID                  %s\n", cfg.RunID)
			fmt.Printf("CSTAR_ORCH_TRX_FREQ          %s\n", cfg.OrchTrxFreq)
			fmt.Printf("CSTAR_QUEUES_FILE            %s\n", cfg.QueuesFile)
			fmt.Printf("CSTAR_CMD_CONVERTER_OVERRIDE %s\n", cfg.CmdConverterOverride)
			fmt.Printf("host kind                    %s\n", svc.system.Host)
			fmt.Printf("scheduler                    %s\n", svc.system.Scheduler)
			fmt.Printf("compiler                     %s\n", svc.system.Compiler)
			return nil
		},
	}
}
