package simulation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/gowe/pkg/model"
)

func writeRankFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPostRun_MergesRankGroupsAndRemovesIntermediates(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateRunning)
	outDir := filepath.Join(sim.Model.Directory, "output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeRankFile(t, outDir, "his.0000.nc")
	writeRankFile(t, outDir, "his.0001.nc")
	writeRankFile(t, outDir, "rst.0000.nc")

	merger := &fakeMerger{}
	if err := sim.PostRun(context.Background(), merger); err != nil {
		t.Fatalf("PostRun: %v", err)
	}
	if len(merger.merged) != 2 {
		t.Fatalf("merged groups = %d, want 2 (his, rst)", len(merger.merged))
	}
	if _, err := os.Stat(filepath.Join(outDir, "his.0000.nc")); !os.IsNotExist(err) {
		t.Error("partitioned intermediate his.0000.nc should have been removed")
	}
	if sim.Model.State != model.SimStateFinished {
		t.Errorf("state = %s, want FINISHED", sim.Model.State)
	}
}

func TestPostRun_NoOutputFilesIsANoOp(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateRunning)
	merger := &fakeMerger{}
	if err := sim.PostRun(context.Background(), merger); err != nil {
		t.Fatalf("PostRun: %v", err)
	}
	if len(merger.merged) != 0 {
		t.Errorf("merged = %v, want none", merger.merged)
	}
}

func TestPostRun_FailedMergeKeepsIntermediatesAndReturnsError(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateRunning)
	outDir := filepath.Join(sim.Model.Directory, "output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeRankFile(t, outDir, "his.0000.nc")

	merger := &fakeMerger{failOn: filepath.Join(outDir, "his.nc")}
	if err := sim.PostRun(context.Background(), merger); err == nil {
		t.Fatal("expected error from failed merge")
	}
	if _, err := os.Stat(filepath.Join(outDir, "his.0000.nc")); err != nil {
		t.Error("partitioned intermediate should survive a failed merge")
	}
	if sim.Model.State == model.SimStateFinished {
		t.Error("state should not advance to FINISHED after a failed merge")
	}
}
