// Package orchestrator drives a Workplan's steps to completion: the
// direct generalization of the teacher's polling scheduler loop, here
// over Simulation steps instead of CWL tool invocations.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/internal/jobrecord"
	"github.com/me/gowe/internal/workplan"
	"github.com/me/gowe/pkg/model"
)

// StepRunner materializes and drives one Workplan Step's Simulation
// through setup/build/pre_run and submission, and can re-attach a live
// Handler to a step that was already submitted by a prior process.
type StepRunner interface {
	// Dispatch prepares step's Simulation (applying its overrides) in
	// workDir, runs setup/build/pre_run, submits it, and returns the
	// live Handler plus the path to its submission script.
	Dispatch(ctx context.Context, step model.Step, workDir string) (h handler.Handler, scriptPath string, err error)

	// Reattach reconstructs a live Handler for a step that rec records
	// as already submitted, so polling can resume after a restart
	// without resubmitting.
	Reattach(ctx context.Context, step model.Step, rec model.StepRecord) (handler.Handler, error)

	// Finalize runs once, immediately after a step's Handler reports
	// COMPLETED, to merge partitioned outputs before the step is
	// marked SUCCESS. A no-op Finalize is valid for a StepRunner with
	// nothing to merge.
	Finalize(ctx context.Context, step model.Step, rec model.StepRecord) error
}

// Orchestrator runs one Workplan to completion, persisting a Job
// Record after every tick so a crashed or interrupted run can resume.
type Orchestrator struct {
	Jobs         *jobrecord.Store
	Index        *jobrecord.Index // optional; nil disables the fast run-ID lookup
	Runner       StepRunner
	PollInterval time.Duration
	Logger       *slog.Logger

	handlers map[string]handler.Handler

	// pendingTerminal holds, per step, a terminal status observed on the
	// immediately preceding poll but not yet acted on. A step's status
	// is only finalized once the same terminal status is read twice in a
	// row, since a handler may briefly misreport COMPLETED/FAILED around
	// a real state transition.
	pendingTerminal map[string]model.JobStatus
}

// New creates an Orchestrator with PollInterval set to 2 seconds,
// matching the teacher's scheduler.DefaultConfig.
func New(jobs *jobrecord.Store, runner StepRunner, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Jobs:            jobs,
		Runner:          runner,
		PollInterval:    2 * time.Second,
		Logger:          logger.With("component", "orchestrator"),
		handlers:        map[string]handler.Handler{},
		pendingTerminal: map[string]model.JobStatus{},
	}
}

// Run drives wp under runID to completion, blocking until every step
// is terminal or ctx is cancelled. A PID-bearing lockfile rejects a
// second concurrent Run against the same run-ID. If a Job Record
// already exists for runID with a different workplan_digest, Run
// returns a RunIDConflict unless force is true.
func (o *Orchestrator) Run(ctx context.Context, wp *model.Workplan, runID string, force bool) error {
	digest, err := workplan.Digest(wp)
	if err != nil {
		return err
	}

	lock, err := o.Jobs.AcquireLock(runID)
	if err != nil {
		return err
	}
	defer lock.Release()

	dag, err := workplan.BuildDAG(wp)
	if err != nil {
		return err
	}

	rec, err := o.Jobs.Load(runID)
	if err != nil {
		return err
	}
	switch {
	case rec == nil:
		rec = o.Jobs.NewRecord(runID, digest)
		for _, step := range wp.Steps {
			rec.Steps[step.Name] = model.StepRecord{Status: model.StepStatePending}
		}
	case rec.WorkplanDigest != digest && !force:
		return &model.RunIDConflict{RunID: runID, StoredDigest: rec.WorkplanDigest, GivenDigest: digest}
	case rec.WorkplanDigest != digest:
		rec.WorkplanDigest = digest
	}

	if o.Index != nil {
		o.Index.Record(runID, digest)
	}

	if err := o.reattachRunning(ctx, wp, rec); err != nil {
		return err
	}

	for {
		done, err := o.Tick(ctx, wp, dag, rec)
		if err != nil {
			return err
		}
		if err := o.Jobs.Save(rec); err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.PollInterval):
		}
	}
}

// reattachRunning re-acquires a live Handler for every step the record
// shows as still RUNNING, so a resumed orchestrator polls instead of
// resubmitting.
func (o *Orchestrator) reattachRunning(ctx context.Context, wp *model.Workplan, rec *model.JobRecord) error {
	for _, step := range wp.Steps {
		sr, ok := rec.Steps[step.Name]
		if !ok || sr.Status != model.StepStateRunning {
			continue
		}
		h, err := o.Runner.Reattach(ctx, step, sr)
		if err != nil {
			return fmt.Errorf("orchestrator: reattach step %s: %w", step.Name, err)
		}
		o.handlers[step.Name] = h
		delete(o.pendingTerminal, step.Name)
	}
	return nil
}
