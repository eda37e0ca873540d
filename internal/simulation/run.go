package simulation

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/pkg/model"
)

// RunOptions carries the per-invocation knobs Run needs beyond what is
// already recorded on the Simulation: the scheduler account/queue and
// walltime, all ignored by a local handler.
type RunOptions struct {
	Account     string
	Queue       string
	Walltime    string
	Nodes       int
	CPUsPerNode int
}

// Run resolves the account/queue against the System Manager, composes
// the submission command, and dispatches it through the Handler
// Registry for the detected scheduler kind. The already-submitted
// Handler is attached to s and also returned, so a caller that only
// needs to persist a reference (handler_kind/handler_ref) does not need
// to hold onto the returned value itself.
func (s *Simulation) Run(ctx context.Context, opts RunOptions) (handler.Handler, error) {
	if s.Model.State != model.SimStateReady {
		return nil, &model.ValidationError{Path: "$.state", Message: "Run requires a ready Simulation"}
	}

	kind := model.HandlerLocal
	if s.deps.System != nil {
		kind = s.deps.System.Scheduler
		if err := s.deps.System.RequireAccountAndQueue(opts.Account, opts.Queue); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	jobName := fmt.Sprintf("cstar_job_%s", now.Format("20060102_150405"))
	outDir := filepath.Join(s.Model.Directory, "output")

	var directives map[string]string
	if s.deps.System != nil && s.deps.System.Queues != nil {
		if q, ok := s.deps.System.Queues.Get(opts.Queue); ok {
			directives = q.Directives
		}
	}

	spec := handler.Spec{
		Commands:    s.runCommand(),
		RunPath:     s.Model.Directory,
		ScriptPath:  filepath.Join(s.Model.Directory, jobName+".sh"),
		OutputFile:  filepath.Join(outDir, jobName+".out"),
		JobName:     jobName,
		AccountKey:  opts.Account,
		QueueName:   opts.Queue,
		Walltime:    opts.Walltime,
		CPUs:        s.Model.Discretization.NRanks(),
		Nodes:       opts.Nodes,
		CPUsPerNode: opts.CPUsPerNode,
		Directives:  directives,
	}

	h, err := s.deps.Handlers.New(kind, spec)
	if err != nil {
		return nil, err
	}
	if err := h.Submit(ctx); err != nil {
		return nil, err
	}

	s.handler = h
	s.Model.HandlerKind = kind
	s.Model.HandlerRef = h.ID()
	if err := s.transition(model.SimStateRunning); err != nil {
		return nil, err
	}
	return h, nil
}

// runCommand composes the MPI launch line for the compiled executable,
// the form every cstar scheduler script ultimately wraps. The
// executable path is derived from the ROMS codebase's local root rather
// than cached, so it survives a Restore (which never re-runs Build) and
// a same-process Build call that takes the fingerprint-matches fast path.
func (s *Simulation) runCommand() string {
	n := s.Model.Discretization.NRanks()
	exe := filepath.Join(s.Model.Codebases.ROMS.LocalRoot, "roms.x")
	return fmt.Sprintf("mpirun -n %d %s roms.in", n, exe)
}
