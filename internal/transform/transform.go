// Package transform implements C-Star's Auto-Transform: splitting one
// long Simulation into a chain of shorter sub-Simulations, each
// restarting from the previous increment's output.
package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/me/gowe/internal/blueprintcodec"
	"github.com/me/gowe/pkg/model"
)

// Frequency names the three increments CSTAR_ORCH_TRX_FREQ accepts.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyDaily   Frequency = "daily"
)

const dateVarLayout = "2006-01-02"

// advance returns the end of the next increment starting at from,
// clamped to not exceed until.
func (f Frequency) advance(from, until time.Time) (time.Time, error) {
	var next time.Time
	switch f {
	case FrequencyMonthly:
		next = from.AddDate(0, 1, 0)
	case FrequencyWeekly:
		next = from.AddDate(0, 0, 7)
	case FrequencyDaily:
		next = from.AddDate(0, 0, 1)
	default:
		return time.Time{}, &model.ConfigurationError{Var: "CSTAR_ORCH_TRX_FREQ", Message: fmt.Sprintf("unrecognized frequency %q", f)}
	}
	if next.After(until) {
		return until, nil
	}
	return next, nil
}

// Split walks sim's [StartDate, EndDate] in increments of freq,
// producing one sub-Simulation Step per increment with
// initial_conditions rewired to the previous increment's restart
// output, chained with depends_on into a linear Workplan. One base
// blueprint is rendered to <sim.Directory>/transform/base.yaml and every
// step references it; each step's date window and initial_conditions
// rewiring are carried in its BlueprintOverrides.
func Split(sim *model.Simulation, freq Frequency) (*model.Workplan, error) {
	if sim.StartDate.After(sim.EndDate) {
		return nil, &model.ValidationError{Path: "$.start_date", Message: "start_date must not be after end_date"}
	}

	base := blueprintFromSimulation(sim)
	codec := blueprintcodec.New()
	rendered, err := codec.Render(base)
	if err != nil {
		return nil, fmt.Errorf("transform: render base blueprint: %w", err)
	}

	transformDir := filepath.Join(sim.Directory, "transform")
	basePath := filepath.Join(transformDir, "base.yaml")

	wp := &model.Workplan{
		Name:        sim.Name + "-split",
		Description: fmt.Sprintf("%s auto-split into %s increments", sim.Name, freq),
		State:       model.WorkplanStateDraft,
	}

	var (
		prevStepName    string
		prevRestartGlob string
		increment       int
		cursor          = sim.StartDate
	)

	for cursor.Before(sim.EndDate) {
		next, err := freq.advance(cursor, sim.EndDate)
		if err != nil {
			return nil, err
		}

		stepName := fmt.Sprintf("%s-%03d", sim.Name, increment)
		overrides := &model.BlueprintOverrides{
			RuntimeVars: map[string]string{
				"start_date": cursor.Format(dateVarLayout),
				"end_date":   next.Format(dateVarLayout),
			},
		}
		if prevStepName != "" {
			overrides.Datasets = []model.InputDataset{
				{
					Role:    model.RoleInitialConditions,
					Variant: model.DatasetVariantNetCDFFile,
					Resource: model.Resource{
						Location: prevRestartGlob,
					},
					DateRange: model.DateRange{Start: cursor, End: cursor},
				},
			}
		}

		step := model.Step{
			Name:        stepName,
			Application: "roms_marbl",
			Blueprint:   basePath,
			Overrides:   overrides,
		}
		if prevStepName != "" {
			step.DependsOn = []string{prevStepName}
		}
		wp.Steps = append(wp.Steps, step)

		prevStepName = stepName
		prevRestartGlob = filepath.Join(sim.Directory, stepName, "output", "rst.nc")
		cursor = next
		increment++
	}

	if err := writeBlueprintFile(basePath, rendered); err != nil {
		return nil, err
	}

	return wp, nil
}

func writeBlueprintFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("transform: create transform directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("transform: write base blueprint: %w", err)
	}
	return nil
}

func blueprintFromSimulation(sim *model.Simulation) *model.Blueprint {
	return &model.Blueprint{
		Name:            sim.Name,
		ValidDateRange:  sim.ValidDateRange,
		Codebases:       sim.Codebases,
		RuntimeCode:     sim.RuntimeCode,
		CompileTimeCode: sim.CompileTimeCode,
		Datasets:        sim.Datasets,
		Discretization:  sim.Discretization,
	}
}
