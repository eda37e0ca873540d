package orchestrator

import (
	"context"
	"time"

	"github.com/me/gowe/internal/workplan"
	"github.com/me/gowe/pkg/model"
)

// Tick runs one scheduling iteration over rec's steps and reports
// whether the whole run has reached a terminal state. It mirrors the
// teacher's Loop.Tick phase structure (advance-pending, dispatch,
// poll-in-flight, finalize), with no retry phase: spec has no
// step-level retry, so a FAILED step stays FAILED.
func (o *Orchestrator) Tick(ctx context.Context, wp *model.Workplan, dag *workplan.DAGResult, rec *model.JobRecord) (done bool, err error) {
	o.advanceFrontier(dag, rec)

	if err := o.dispatchScheduled(ctx, wp, rec); err != nil {
		return false, err
	}

	if err := o.pollRunning(ctx, wp, rec); err != nil {
		return false, err
	}

	return rec.IsTerminal(), nil
}

// advanceFrontier marks PENDING steps SCHEDULED once every dependency
// has succeeded, or SKIPPED once any dependency has failed or been
// skipped, matching the teacher's advancePending phase.
func (o *Orchestrator) advanceFrontier(dag *workplan.DAGResult, rec *model.JobRecord) {
	for _, name := range dag.Order {
		sr, ok := rec.Steps[name]
		if !ok || sr.Status != model.StepStatePending {
			continue
		}

		blocked := false
		allDone := true
		for _, dep := range dag.Deps[name] {
			depState := rec.Steps[dep].Status
			switch depState {
			case model.StepStateFailed, model.StepStateSkipped:
				blocked = true
			case model.StepStateSuccess:
			default:
				allDone = false
			}
		}

		switch {
		case blocked:
			sr.Status = model.StepStateSkipped
			rec.Steps[name] = sr
		case allDone:
			sr.Status = model.StepStateScheduled
			rec.Steps[name] = sr
		}
	}
}

// dispatchScheduled submits every SCHEDULED step, in Workplan
// declaration order, matching the teacher's dispatchScheduled phase.
func (o *Orchestrator) dispatchScheduled(ctx context.Context, wp *model.Workplan, rec *model.JobRecord) error {
	for _, step := range wp.Steps {
		sr := rec.Steps[step.Name]
		if sr.Status != model.StepStateScheduled {
			continue
		}

		workDir := step.Name
		h, scriptPath, err := o.Runner.Dispatch(ctx, step, workDir)
		if err != nil {
			sr.Status = model.StepStateFailed
			rec.Steps[step.Name] = sr
			o.Logger.Error("dispatch step", "step", step.Name, "error", err)
			continue
		}

		submittedAt := h.SubmittedAt()
		sr.Status = model.StepStateRunning
		sr.HandlerID = h.ID()
		sr.ScriptPath = scriptPath
		sr.OutputPath = h.OutputFile()
		sr.SubmittedAt = &submittedAt
		rec.Steps[step.Name] = sr
		o.handlers[step.Name] = h
	}
	return nil
}

// pollRunning re-queries every RUNNING step's Handler, matching the
// teacher's pollInFlight phase. A step reporting COMPLETED is run
// through Finalize before being marked SUCCESS, so a merge failure
// fails the step instead of silently leaving unmerged partitions.
//
// A terminal status (COMPLETED/FAILED/CANCELLED) is never acted on from
// a single observation: a handler may briefly misreport one around a
// real state transition, so pollRunning requires the same terminal
// status on two consecutive polls before finalizing or failing a step.
func (o *Orchestrator) pollRunning(ctx context.Context, wp *model.Workplan, rec *model.JobRecord) error {
	steps := make(map[string]model.Step, len(wp.Steps))
	for _, step := range wp.Steps {
		steps[step.Name] = step
	}

	for name, sr := range rec.Steps {
		if sr.Status != model.StepStateRunning {
			continue
		}
		h, ok := o.handlers[name]
		if !ok {
			continue
		}

		status, err := h.Status(ctx)
		if err != nil {
			o.Logger.Error("poll step", "step", name, "error", err)
			continue
		}

		if !isTerminalJobStatus(status) {
			delete(o.pendingTerminal, name)
			continue
		}
		if o.pendingTerminal[name] != status {
			o.pendingTerminal[name] = status
			continue
		}
		delete(o.pendingTerminal, name)

		switch status {
		case model.JobStatusCompleted:
			if err := o.Runner.Finalize(ctx, steps[name], sr); err != nil {
				o.Logger.Error("finalize step", "step", name, "error", err)
				sr.Status = model.StepStateFailed
			} else {
				sr.Status = model.StepStateSuccess
			}
		case model.JobStatusFailed, model.JobStatusCancelled:
			sr.Status = model.StepStateFailed
		}
		now := time.Now()
		sr.FinishedAt = &now
		rec.Steps[name] = sr
	}
	return nil
}

func isTerminalJobStatus(status model.JobStatus) bool {
	switch status {
	case model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
		return true
	default:
		return false
	}
}
