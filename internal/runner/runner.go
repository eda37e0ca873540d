// Package runner implements orchestrator.StepRunner: it materializes a
// Workplan Step's Blueprint into a Simulation and drives it through
// setup, build, pre_run, and submission. It is the one piece that
// actually wires internal/blueprintcodec, internal/simulation, and
// internal/orchestrator together; the CLI constructs one Runner per
// process and hands it to the Orchestrator.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/me/gowe/internal/blueprintcodec"
	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/internal/simulation"
	"github.com/me/gowe/internal/sysmgr"
	"github.com/me/gowe/pkg/model"
)

const dateLayout = "2006-01-02"

// Runner drives one Simulation per dispatched Step. Deps is the
// template of shared collaborators (codebase installer, stager,
// dataset materializer, handler registry) every Simulation this
// process constructs is given.
type Runner struct {
	Codec      *blueprintcodec.Codec
	Deps       simulation.Deps
	System     *sysmgr.Manager
	RunOptions simulation.RunOptions
	BaseDir    string
	Logger     *slog.Logger

	// Merger, if set, is invoked by Finalize to join a completed
	// step's partitioned outputs. Left nil, Finalize is a no-op beyond
	// re-attaching the Simulation snapshot.
	Merger simulation.Merger
}

// New creates a Runner.
func New(deps simulation.Deps, system *sysmgr.Manager, baseDir string, logger *slog.Logger) *Runner {
	deps.System = system
	return &Runner{
		Codec:   blueprintcodec.New(),
		Deps:    deps,
		System:  system,
		BaseDir: baseDir,
		Logger:  logger.With("component", "runner"),
	}
}

// Dispatch materializes step's Blueprint (applying its overrides),
// runs Setup/Build/PreRun, submits it, and returns the live Handler.
func (r *Runner) Dispatch(ctx context.Context, step model.Step, workDir string) (handler.Handler, string, error) {
	sim, err := r.materialize(step, workDir)
	if err != nil {
		return nil, "", err
	}

	s := simulation.New(sim, r.Deps)
	if err := s.Setup(ctx); err != nil {
		return nil, "", fmt.Errorf("runner: setup step %s: %w", step.Name, err)
	}
	if err := s.Build(ctx); err != nil {
		return nil, "", fmt.Errorf("runner: build step %s: %w", step.Name, err)
	}
	if err := s.PreRun(ctx, defaultRuntimeSettings(sim)); err != nil {
		return nil, "", fmt.Errorf("runner: pre_run step %s: %w", step.Name, err)
	}
	if err := s.Persist(); err != nil {
		return nil, "", fmt.Errorf("runner: persist step %s: %w", step.Name, err)
	}

	h, err := s.Run(ctx, r.RunOptions)
	if err != nil {
		return nil, "", fmt.Errorf("runner: run step %s: %w", step.Name, err)
	}
	if err := s.Persist(); err != nil {
		return nil, "", fmt.Errorf("runner: persist step %s after submit: %w", step.Name, err)
	}
	return h, h.ScriptPath(), nil
}

// Reattach reconstructs a live Handler for a step rec records as
// already submitted, resolving the same handler kind Dispatch would
// have chosen (the host's scheduler, deterministic per-process) and
// re-attaching by the persisted HandlerID rather than resubmitting.
func (r *Runner) Reattach(ctx context.Context, step model.Step, rec model.StepRecord) (handler.Handler, error) {
	kind := model.HandlerLocal
	if r.System != nil && r.System.Scheduler != "" {
		kind = r.System.Scheduler
	}
	submittedAt := time.Time{}
	if rec.SubmittedAt != nil {
		submittedAt = *rec.SubmittedAt
	}
	spec := handler.Spec{JobName: step.Name, ScriptPath: rec.ScriptPath, OutputFile: rec.OutputPath}
	return r.Deps.Handlers.Attach(kind, spec, rec.HandlerID, submittedAt)
}

// Finalize re-attaches the Simulation a completed step persisted and
// merges its partitioned outputs, if a Merger was configured.
func (r *Runner) Finalize(ctx context.Context, step model.Step, rec model.StepRecord) error {
	dir := filepath.Join(r.BaseDir, step.Name)
	sim, err := simulation.Restore(ctx, dir, r.Deps)
	if err != nil {
		return fmt.Errorf("runner: restore step %s for finalize: %w", step.Name, err)
	}
	if r.Merger == nil {
		return nil
	}
	return sim.PostRun(ctx, r.Merger)
}

// materialize parses step's Blueprint file, applies its overrides, and
// builds the model.Simulation it describes, rooted at
// <BaseDir>/<workDir>.
func (r *Runner) materialize(step model.Step, workDir string) (*model.Simulation, error) {
	raw, err := os.ReadFile(step.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("runner: read blueprint for step %s: %w", step.Name, err)
	}
	bp, err := r.Codec.Parse(raw, filepath.Dir(step.Blueprint))
	if err != nil {
		return nil, fmt.Errorf("runner: parse blueprint for step %s: %w", step.Name, err)
	}

	dir := filepath.Join(r.BaseDir, workDir)
	sim := &model.Simulation{
		Name:            step.Name,
		Directory:       dir,
		ValidDateRange:  bp.ValidDateRange,
		StartDate:       bp.ValidDateRange.Start,
		EndDate:         bp.ValidDateRange.End,
		Codebases:       bp.Codebases,
		RuntimeCode:     bp.RuntimeCode,
		CompileTimeCode: bp.CompileTimeCode,
		Datasets:        bp.Datasets,
		Discretization:  bp.Discretization,
		State:           model.SimStateConstructed,
	}

	applyOverrides(sim, step.Overrides)

	if err := sim.ValidateDateRange(); err != nil {
		return nil, err
	}
	return sim, nil
}

// applyOverrides layers a Step's BlueprintOverrides onto sim: a
// replaced Discretization, appended/replaced Datasets by role, and the
// step's date window from the start_date/end_date RuntimeVars entries,
// the only RuntimeVars it reads (see
// internal/transform, which is the producer of these overrides for an
// auto-split Workplan).
func applyOverrides(sim *model.Simulation, overrides *model.BlueprintOverrides) {
	if overrides == nil {
		return
	}
	if overrides.Discretization != nil {
		sim.Discretization = *overrides.Discretization
	}
	for _, override := range overrides.Datasets {
		replaced := false
		for i, ds := range sim.Datasets {
			if ds.Role == override.Role {
				sim.Datasets[i] = override
				replaced = true
				break
			}
		}
		if !replaced {
			sim.Datasets = append(sim.Datasets, override)
		}
	}
	if start, ok := overrides.RuntimeVars["start_date"]; ok {
		if t, err := time.Parse(dateLayout, start); err == nil {
			sim.StartDate = t
		}
	}
	if end, ok := overrides.RuntimeVars["end_date"]; ok {
		if t, err := time.Parse(dateLayout, end); err == nil {
			sim.EndDate = t
		}
	}
}

// defaultRuntimeSettings builds the minimal required sections of a
// ROMS ".in" file from sim's discretization and date range. A real
// deployment typically overrides this by parsing a template rendered
// into RuntimeCode; this covers the common case where no such
// template is declared.
func defaultRuntimeSettings(sim *model.Simulation) *model.RuntimeSettings {
	nTimes := 1
	if sim.Discretization.TimeStep > 0 {
		if n := int(sim.EndDate.Sub(sim.StartDate).Seconds() / sim.Discretization.TimeStep); n > 0 {
			nTimes = n
		}
	}
	rs := &model.RuntimeSettings{}
	rs.Set("title", []string{sim.Name})
	rs.Set("time_stepping", []string{fmt.Sprintf("%d    %g    60    1", nTimes, sim.Discretization.TimeStep)})
	rs.Set("bottom_drag", []string{"0.0    0.0    0.0"})
	rs.Set("output_root_name", []string{sim.Name})
	return rs
}
