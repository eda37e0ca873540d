package simulation

import (
	"context"
	"testing"

	"github.com/me/gowe/pkg/model"
)

func TestPersistThenRestore_RoundTrips(t *testing.T) {
	sim, _, _, _ := newTestSim(t, model.SimStateRunning)
	sim.Model.HandlerKind = model.HandlerLocal
	sim.Model.HandlerRef = "fake-42"

	if err := sim.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	restored, err := Restore(context.Background(), sim.Model.Directory, Deps{
		Handlers: &fakeHandlers{},
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Model.Name != sim.Model.Name {
		t.Errorf("Name = %q, want %q", restored.Model.Name, sim.Model.Name)
	}
	if restored.Model.State != model.SimStateRunning {
		t.Errorf("State = %s, want RUNNING", restored.Model.State)
	}
	if restored.Handler() == nil {
		t.Error("expected a re-attached handler")
	}
	if restored.Handler().ID() != "fake-42" {
		t.Errorf("re-attached handler ID = %q, want fake-42", restored.Handler().ID())
	}
}

func TestRestore_MissingSnapshotErrors(t *testing.T) {
	_, err := Restore(context.Background(), t.TempDir(), Deps{})
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}
