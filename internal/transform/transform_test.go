package transform

import (
	"testing"
	"time"

	"github.com/me/gowe/pkg/model"
)

func testSimulation(t *testing.T, start, end time.Time) *model.Simulation {
	return &model.Simulation{
		Name:      "roms-chain",
		Directory: t.TempDir(),
		StartDate: start,
		EndDate:   end,
		Codebases: model.Codebases{
			ROMS: model.ExternalCodebase{Name: "roms", SourceRepo: "https://github.com/CWorthy-ocean/ucla-roms.git"},
		},
		Discretization: model.Discretization{NProcsX: 2, NProcsY: 2, TimeStep: 60},
	}
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSplit_MonthlyProducesOneStepPerIncrement(t *testing.T) {
	sim := testSimulation(t, date("2020-01-01"), date("2020-04-01"))

	wp, err := Split(sim, FrequencyMonthly)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(wp.Steps) != 3 {
		t.Fatalf("got %d steps, want 3 (Jan, Feb, Mar)", len(wp.Steps))
	}
	for i, step := range wp.Steps {
		if i == 0 {
			if len(step.DependsOn) != 0 {
				t.Errorf("first step should have no dependencies, got %v", step.DependsOn)
			}
			continue
		}
		if len(step.DependsOn) != 1 || step.DependsOn[0] != wp.Steps[i-1].Name {
			t.Errorf("step %d depends_on = %v, want [%s]", i, step.DependsOn, wp.Steps[i-1].Name)
		}
	}
}

func TestSplit_LaterStepsRewireInitialConditions(t *testing.T) {
	sim := testSimulation(t, date("2020-01-01"), date("2020-03-01"))

	wp, err := Split(sim, FrequencyMonthly)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if wp.Steps[0].Overrides != nil && len(wp.Steps[0].Overrides.Datasets) != 0 {
		t.Errorf("first step should not override initial_conditions, got %v", wp.Steps[0].Overrides.Datasets)
	}
	if len(wp.Steps) < 2 {
		t.Fatal("expected at least 2 steps")
	}
	ds := wp.Steps[1].Overrides.Datasets
	if len(ds) != 1 || ds[0].Role != model.RoleInitialConditions {
		t.Fatalf("second step overrides = %v, want a single initial_conditions override", ds)
	}
}

func TestSplit_DailyClampsFinalIncrementToEndDate(t *testing.T) {
	sim := testSimulation(t, date("2020-01-01"), date("2020-01-02"))

	wp, err := Split(sim, FrequencyDaily)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(wp.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(wp.Steps))
	}
}

func TestSplit_EndBeforeStartIsRejected(t *testing.T) {
	sim := testSimulation(t, date("2020-02-01"), date("2020-01-01"))
	if _, err := Split(sim, FrequencyMonthly); err == nil {
		t.Fatal("expected a ValidationError for end before start")
	}
}

func TestSplit_UnrecognizedFrequencyRejected(t *testing.T) {
	sim := testSimulation(t, date("2020-01-01"), date("2020-02-01"))
	_, err := Split(sim, Frequency("yearly"))
	if _, ok := err.(*model.ConfigurationError); !ok {
		t.Fatalf("got %v (%T), want *model.ConfigurationError", err, err)
	}
}
