package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/me/gowe/pkg/model"
)

// CommandGenerator implements Generator by shelling out to an external
// grid/forcing generator (roms-tools in the original implementation),
// the same exec.CommandContext capture idiom internal/codebase uses
// for make invocations. C-Star never implements or inspects the
// generator's logic, only its invocation contract: take a recipe path
// and an output directory, print the produced file paths one per line
// on stdout.
type CommandGenerator struct {
	command string
	logger  *slog.Logger
}

// NewCommandGenerator creates a CommandGenerator invoking command
// (overridable via CSTAR_CMD_CONVERTER_OVERRIDE for tests) as
// `<command> <recipePath> <outDir>`.
func NewCommandGenerator(command string, logger *slog.Logger) *CommandGenerator {
	return &CommandGenerator{command: command, logger: logger.With("component", "dataset_generator")}
}

func (g *CommandGenerator) Generate(ctx context.Context, recipePath, outDir string) ([]string, error) {
	if g.command == "" {
		return nil, &model.ConfigurationError{
			Var:     "CSTAR_CMD_CONVERTER_OVERRIDE",
			Message: "no grid/forcing generator command configured",
		}
	}

	cmd := exec.CommandContext(ctx, g.command, recipePath, outDir)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return nil, &model.DatasetError{
			SourceYAML: recipePath,
			Requested:  outDir,
			Err:        fmt.Errorf("%s: %w: %s", g.command, err, errOut.String()),
		}
	}

	var paths []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	if len(paths) == 0 {
		return nil, &model.DatasetError{
			SourceYAML: recipePath,
			Requested:  outDir,
			Err:        fmt.Errorf("%s produced no output paths", g.command),
		}
	}
	return paths, nil
}
