package workplan

import (
	"testing"

	"github.com/me/gowe/pkg/model"
)

func wp(steps ...model.Step) *model.Workplan {
	return &model.Workplan{Name: "test", Steps: steps}
}

func TestBuildDAG_LinearOrder(t *testing.T) {
	result, err := BuildDAG(wp(
		model.Step{Name: "job1"},
		model.Step{Name: "job2", DependsOn: []string{"job1"}},
		model.Step{Name: "job3", DependsOn: []string{"job1"}},
	))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if result.Order[0] != "job1" {
		t.Errorf("order[0] = %q, want job1", result.Order[0])
	}
	if len(result.Order) != 3 {
		t.Fatalf("got %d steps in order, want 3", len(result.Order))
	}
}

func TestBuildDAG_DuplicateNameRejected(t *testing.T) {
	_, err := BuildDAG(wp(
		model.Step{Name: "job1"},
		model.Step{Name: "job1"},
	))
	if _, ok := err.(*model.ValidationError); !ok {
		t.Fatalf("got %v (%T), want *model.ValidationError", err, err)
	}
}

func TestBuildDAG_UnknownDependencyRejected(t *testing.T) {
	_, err := BuildDAG(wp(
		model.Step{Name: "job1", DependsOn: []string{"ghost"}},
	))
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestBuildDAG_CycleRejected(t *testing.T) {
	_, err := BuildDAG(wp(
		model.Step{Name: "a", DependsOn: []string{"b"}},
		model.Step{Name: "b", DependsOn: []string{"a"}},
	))
	if err == nil {
		t.Fatal("expected error for cycle")
	}
}

func TestFrontier_ComputesReadySteps(t *testing.T) {
	result, err := BuildDAG(wp(
		model.Step{Name: "job1"},
		model.Step{Name: "job2", DependsOn: []string{"job1"}},
		model.Step{Name: "job3", DependsOn: []string{"job1"}},
	))
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	frontier := result.Frontier(map[string]bool{})
	if len(frontier) != 1 || frontier[0] != "job1" {
		t.Fatalf("initial frontier = %v, want [job1]", frontier)
	}

	frontier = result.Frontier(map[string]bool{"job1": true})
	if len(frontier) != 2 {
		t.Fatalf("frontier after job1 = %v, want 2 entries", frontier)
	}
}

func TestDigest_StableAcrossRuns(t *testing.T) {
	w := wp(model.Step{Name: "job1"}, model.Step{Name: "job2", DependsOn: []string{"job1"}})
	d1, err := Digest(w)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := Digest(w)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d1 != d2 {
		t.Errorf("digest not stable: %q != %q", d1, d2)
	}
}

func TestDigest_DiffersOnContentChange(t *testing.T) {
	w1 := wp(model.Step{Name: "job1"})
	w2 := wp(model.Step{Name: "job1"}, model.Step{Name: "job2"})
	d1, _ := Digest(w1)
	d2, _ := Digest(w2)
	if d1 == d2 {
		t.Error("digest identical for different workplans")
	}
}
