// Package handler implements C-Star's Execution Handler: a uniform
// interface over running a Simulation step as a local subprocess, a
// Slurm batch job, or a PBS batch job.
package handler

import (
	"context"
	"time"

	"github.com/me/gowe/pkg/model"
)

// Handler submits and tracks one running step, regardless of backend.
type Handler interface {
	// Submit starts the job. For LocalProcess this forks the
	// subprocess immediately; for Slurm/PBS it writes the batch
	// script and hands it to the scheduler.
	Submit(ctx context.Context) error

	// Status polls the current lifecycle state. Implementations must
	// only ever report a state reachable from the handler's previous
	// report per model.ValidJobTransitions.
	Status(ctx context.Context) (model.JobStatus, error)

	// Cancel requests termination of a running or pending job.
	Cancel(ctx context.Context) error

	// Updates streams appended lines of the output file for up to
	// seconds (0 streams until ctx is cancelled).
	Updates(ctx context.Context, seconds int) (<-chan string, error)

	ID() string
	Script() string
	ScriptPath() string
	OutputFile() string
	SubmittedAt() time.Time
}

// Spec is the backend-agnostic description of a job to run, common to
// all three handler kinds.
type Spec struct {
	Commands   string
	RunPath    string
	ScriptPath string
	OutputFile string
	JobName    string

	// Scheduler-only fields; ignored by LocalProcess.
	AccountKey    string
	QueueName     string
	Walltime      string
	CPUs          int
	Nodes         int
	CPUsPerNode   int
	Directives    map[string]string
	EnvVars       map[string]string
}

func defaultName(prefix string, now time.Time) string {
	return prefix + now.Format("20060102_150405")
}
