package simulation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/me/gowe/pkg/model"
)

// CommandPartitioner and CommandMerger implement Partitioner and
// Merger by shelling out to the same external ROMS-tools-family binary
// PostRun/PreRun are configured with (CSTAR_CMD_CONVERTER_OVERRIDE),
// the same black-box treatment dataset.CommandGenerator applies: their
// algorithms are never implemented or inspected here, only invoked.

// CommandPartitioner splits a netCDF file across MPI ranks by invoking
// `<command> partition <path> <nRanks> <destDir>`.
type CommandPartitioner struct {
	command string
	logger  *slog.Logger
}

// NewCommandPartitioner creates a CommandPartitioner.
func NewCommandPartitioner(command string, logger *slog.Logger) *CommandPartitioner {
	return &CommandPartitioner{command: command, logger: logger.With("component", "partitioner")}
}

func (p *CommandPartitioner) Partition(outputPath string, nRanks int, destDir string) ([]string, error) {
	if p.command == "" {
		return nil, &model.ConfigurationError{Var: "CSTAR_CMD_CONVERTER_OVERRIDE", Message: "no partitioning tool configured"}
	}
	cmd := exec.CommandContext(context.Background(), p.command, "partition", outputPath, strconv.Itoa(nRanks), destDir)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, &model.DatasetError{SourceYAML: outputPath, Requested: destDir, Err: fmt.Errorf("%s: %w: %s", p.command, err, errOut.String())}
	}
	return splitLines(out.String()), nil
}

// CommandMerger merges per-rank netCDF output files by invoking
// `<command> merge <rankFiles...> <destPath>`.
type CommandMerger struct {
	command string
	logger  *slog.Logger
}

// NewCommandMerger creates a CommandMerger.
func NewCommandMerger(command string, logger *slog.Logger) *CommandMerger {
	return &CommandMerger{command: command, logger: logger.With("component", "merger")}
}

func (m *CommandMerger) Merge(rankFiles []string, destPath string) error {
	if m.command == "" {
		return &model.ConfigurationError{Var: "CSTAR_CMD_CONVERTER_OVERRIDE", Message: "no merge tool configured"}
	}
	args := append([]string{"merge"}, rankFiles...)
	args = append(args, destPath)
	cmd := exec.CommandContext(context.Background(), m.command, args...)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return &model.DatasetError{SourceYAML: strings.Join(rankFiles, ","), Requested: destPath, Err: fmt.Errorf("%s: %w: %s", m.command, err, errOut.String())}
	}
	return nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
