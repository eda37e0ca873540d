package handler

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/me/gowe/pkg/model"
)

// Registry constructs the right Handler implementation for a host's
// scheduler kind, keeping the orchestrator and Simulation packages
// ignorant of local/slurm/pbs specifics.
type Registry struct {
	coresPerNodeOnSystem int
	logger               *slog.Logger
}

// NewRegistry creates a Registry. coresPerNodeOnSystem is only
// consulted for PBS jobs submitted without an explicit node count.
func NewRegistry(coresPerNodeOnSystem int, logger *slog.Logger) *Registry {
	return &Registry{coresPerNodeOnSystem: coresPerNodeOnSystem, logger: logger}
}

// New constructs a Handler of the given kind for spec.
func (r *Registry) New(kind model.HandlerKind, spec Spec) (Handler, error) {
	switch kind {
	case model.HandlerLocal:
		return NewLocalProcess(spec, r.logger), nil
	case model.HandlerSlurm:
		return NewSlurmJob(spec, r.logger), nil
	case model.HandlerPBS:
		return NewPBSJob(spec, r.coresPerNodeOnSystem, r.logger), nil
	default:
		return nil, &model.ConfigurationError{Var: "handler_kind", Message: "unknown handler kind " + string(kind)}
	}
}

// Attach reconstructs a Handler of the given kind already identified
// by id, so the Orchestrator can resume polling a step submitted by a
// prior process without resubmitting it.
func (r *Registry) Attach(kind model.HandlerKind, spec Spec, id string, submittedAt time.Time) (Handler, error) {
	switch kind {
	case model.HandlerLocal:
		pid, err := strconv.Atoi(id)
		if err != nil {
			return nil, &model.ConfigurationError{Var: "handler_id", Message: "local handler ID is not a PID: " + id}
		}
		return NewLocalProcessAttached(spec, pid, submittedAt, r.logger), nil
	case model.HandlerSlurm:
		return NewSlurmJobAttached(spec, id, submittedAt, r.logger), nil
	case model.HandlerPBS:
		return NewPBSJobAttached(spec, r.coresPerNodeOnSystem, id, submittedAt, r.logger), nil
	default:
		return nil, &model.ConfigurationError{Var: "handler_kind", Message: "unknown handler kind " + string(kind)}
	}
}
