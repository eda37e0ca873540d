package simulation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/gowe/pkg/model"
)

func testRuntimeSettings() *model.RuntimeSettings {
	rs := &model.RuntimeSettings{}
	rs.Blocks = []model.RuntimeSettingsBlock{
		{Key: "title", Values: []string{"test run"}},
		{Key: "time_stepping", Values: []string{"100 60.0 1 1"}},
		{Key: "bottom_drag", Values: []string{"1.0D-4"}},
		{Key: "output_root_name", Values: []string{"roms_test"}},
	}
	return rs
}

func TestPreRun_RendersSettingsAndTransitionsToReady(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateBuilt)

	if err := sim.PreRun(context.Background(), testRuntimeSettings()); err != nil {
		t.Fatalf("PreRun: %v", err)
	}
	if sim.Model.State != model.SimStateReady {
		t.Errorf("state = %s, want READY", sim.Model.State)
	}
	if _, err := os.Stat(filepath.Join(sim.Model.Directory, "roms.in")); err != nil {
		t.Errorf("roms.in not written: %v", err)
	}
}

func TestPreRun_WithoutPartitionerLeavesOutputPathsUntouched(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateBuilt)
	sim.Model.Datasets = []model.InputDataset{
		{Role: model.RoleGrid, OutputPaths: []string{"/tmp/grid.nc"}},
	}

	if err := sim.PreRun(context.Background(), testRuntimeSettings()); err != nil {
		t.Fatalf("PreRun: %v", err)
	}
	if len(sim.Model.Datasets[0].OutputPaths) != 1 || sim.Model.Datasets[0].OutputPaths[0] != "/tmp/grid.nc" {
		t.Errorf("OutputPaths mutated without a Partitioner: %v", sim.Model.Datasets[0].OutputPaths)
	}
}

func TestPreRun_PartitionsMaterializedDatasets(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateBuilt)
	part := &fakePartitioner{}
	sim.deps.Partitioner = part
	sim.Model.Discretization = model.Discretization{NProcsX: 2, NProcsY: 2}
	sim.Model.Datasets = []model.InputDataset{
		{Role: model.RoleGrid, OutputPaths: []string{"/tmp/grid.nc"}},
	}

	if err := sim.PreRun(context.Background(), testRuntimeSettings()); err != nil {
		t.Fatalf("PreRun: %v", err)
	}
	if part.calls != 1 {
		t.Errorf("Partition calls = %d, want 1", part.calls)
	}
	if len(sim.Model.Datasets[0].OutputPaths) != 4 {
		t.Errorf("OutputPaths = %v, want 4 rank files", sim.Model.Datasets[0].OutputPaths)
	}
}
