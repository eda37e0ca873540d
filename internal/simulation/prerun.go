package simulation

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/me/gowe/internal/runtimesettings"
	"github.com/me/gowe/pkg/model"
)

// PreRun renders the runtime-settings file into the working directory
// and, if a Partitioner was injected, partitions every staged input
// dataset across the Discretization's rank count. A Simulation whose
// model does not require partitioned inputs is constructed with a nil
// Partitioner, in which case this step is a no-op beyond rendering.
func (s *Simulation) PreRun(ctx context.Context, settings *model.RuntimeSettings) error {
	if s.Model.State != model.SimStateBuilt && s.Model.State != model.SimStateReady {
		return &model.ValidationError{Path: "$.state", Message: "PreRun requires a built Simulation"}
	}

	if err := s.renderRuntimeSettings(settings); err != nil {
		return err
	}

	if s.deps.Partitioner != nil {
		if err := s.partitionDatasets(ctx); err != nil {
			return err
		}
	}

	if s.Model.State == model.SimStateBuilt {
		return s.transition(model.SimStateReady)
	}
	return nil
}

func (s *Simulation) renderRuntimeSettings(settings *model.RuntimeSettings) error {
	path := filepath.Join(s.Model.Directory, "roms.in")
	if err := runtimesettings.WriteFile(path, settings); err != nil {
		return fmt.Errorf("simulation: render runtime settings: %w", err)
	}
	return nil
}

// partitionDatasets splits every materialized dataset's output files
// across the Simulation's MPI rank count, replacing each dataset's
// OutputPaths with its per-rank partitioned files.
func (s *Simulation) partitionDatasets(ctx context.Context) error {
	nRanks := s.Model.Discretization.NRanks()
	partDir := filepath.Join(s.Model.Directory, "input_datasets", "PARTITIONED")

	for i := range s.Model.Datasets {
		ds := &s.Model.Datasets[i]
		if !ds.IsMaterialized() {
			continue
		}
		var partitioned []string
		for _, path := range ds.OutputPaths {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			parts, err := s.deps.Partitioner.Partition(path, nRanks, partDir)
			if err != nil {
				return &model.DatasetError{SourceYAML: path, Requested: string(ds.Role), Err: err}
			}
			partitioned = append(partitioned, parts...)
		}
		ds.OutputPaths = partitioned
	}
	return nil
}
