// cstar orchestrates reproducible ROMS+MARBL regional ocean
// simulations: resolving External Codebases and Input Datasets,
// building and running Simulations, and driving multi-step Workplans
// to completion.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/me/gowe/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd()
	root.SetContext(ctx)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}
