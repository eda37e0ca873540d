package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/me/gowe/pkg/model"
)

var slurmJobIDPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

// SlurmJob submits a step as a Slurm batch job via sbatch/sacct/scancel.
type SlurmJob struct {
	spec   Spec
	logger *slog.Logger

	mu          sync.Mutex
	id          string
	submittedAt time.Time
}

// NewSlurmJob creates a SlurmJob handler for spec.
func NewSlurmJob(spec Spec, logger *slog.Logger) *SlurmJob {
	return &SlurmJob{spec: spec, logger: logger.With("component", "handler", "kind", "slurm")}
}

// NewSlurmJobAttached re-attaches to a Slurm job already submitted by a
// prior process, so polling can resume via sacct without resubmitting.
func NewSlurmJobAttached(spec Spec, id string, submittedAt time.Time, logger *slog.Logger) *SlurmJob {
	j := NewSlurmJob(spec, logger)
	j.id = id
	j.submittedAt = submittedAt
	return j
}

// Script renders the #SBATCH batch script for this job.
func (j *SlurmJob) Script() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH --job-name=%s\n", j.spec.JobName)
	fmt.Fprintf(&b, "#SBATCH --output=%s\n", j.spec.OutputFile)
	fmt.Fprintf(&b, "#SBATCH --partition=%s\n", j.spec.QueueName)
	fmt.Fprintf(&b, "#SBATCH --ntasks=%d\n", j.spec.CPUs)
	fmt.Fprintf(&b, "#SBATCH --account=%s\n", j.spec.AccountKey)
	b.WriteString("#SBATCH --export=NONE\n")
	b.WriteString("#SBATCH --mail-type=ALL\n")
	fmt.Fprintf(&b, "#SBATCH --time=%s\n", j.spec.Walltime)
	for k, v := range j.spec.Directives {
		fmt.Fprintf(&b, "#SBATCH %s %s\n", k, v)
	}
	for k, v := range j.spec.EnvVars {
		fmt.Fprintf(&b, "export %s=%q\n", k, v)
	}
	b.WriteString("\n")
	b.WriteString(j.spec.Commands)
	b.WriteString("\n")
	return b.String()
}

func (j *SlurmJob) ScriptPath() string { return j.spec.ScriptPath }
func (j *SlurmJob) OutputFile() string { return j.spec.OutputFile }

func (j *SlurmJob) saveScript() error {
	return os.WriteFile(j.spec.ScriptPath, []byte(j.Script()), 0o755)
}

// Submit writes the batch script and hands it to sbatch, stripping any
// inherited SLURM_* environment so a job launched from inside another
// Slurm allocation submits cleanly.
func (j *SlurmJob) Submit(ctx context.Context) error {
	if err := j.saveScript(); err != nil {
		return &model.SchedulerError{Step: j.spec.JobName, Phase: "submit", Err: err}
	}

	cmd := exec.CommandContext(ctx, "sbatch", j.spec.ScriptPath)
	cmd.Dir = j.spec.RunPath
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "SLURM_") {
			cmd.Env = append(cmd.Env, kv)
		}
	}
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return &model.SchedulerError{Step: j.spec.JobName, Phase: "submit", Err: fmt.Errorf("sbatch: %s: %w", errOut.String(), err)}
	}

	matches := slurmJobIDPattern.FindStringSubmatch(out.String())
	if matches == nil {
		return &model.SchedulerError{Step: j.spec.JobName, Phase: "submit", Err: fmt.Errorf("could not parse job ID from sbatch output: %q", out.String())}
	}

	j.mu.Lock()
	j.id = matches[1]
	j.submittedAt = time.Now()
	j.mu.Unlock()
	return nil
}

func (j *SlurmJob) jobID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// ID returns the Slurm job ID assigned by sbatch, or "" before submit.
func (j *SlurmJob) ID() string { return j.jobID() }

func (j *SlurmJob) Updates(ctx context.Context, seconds int) (<-chan string, error) {
	return tailOutput(ctx, j.spec.OutputFile, seconds)
}

// Status polls sacct for this job's state.
func (j *SlurmJob) Status(ctx context.Context) (model.JobStatus, error) {
	id := j.jobID()
	if id == "" {
		return model.JobStatusUnsubmitted, nil
	}

	var out bytes.Buffer
	err := withRetry(ctx, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, func() error {
		out.Reset()
		cmd := exec.CommandContext(ctx, "sacct", "-j", id, "--format=State%20", "--noheader")
		cmd.Stdout = &out
		return cmd.Run()
	})
	if err != nil {
		return model.JobStatusUnknown, &model.SchedulerError{RunID: id, Step: j.spec.JobName, Phase: "poll", Err: err}
	}

	state := out.String()
	switch {
	case strings.Contains(state, "PENDING"):
		return model.JobStatusPending, nil
	case strings.Contains(state, "RUNNING"):
		return model.JobStatusRunning, nil
	case strings.Contains(state, "COMPLETED"):
		return model.JobStatusCompleted, nil
	case strings.Contains(state, "CANCELLED"):
		return model.JobStatusCancelled, nil
	case strings.Contains(state, "FAILED"):
		return model.JobStatusFailed, nil
	default:
		return model.JobStatusUnknown, nil
	}
}

// Cancel invokes scancel on this job's ID.
func (j *SlurmJob) Cancel(ctx context.Context) error {
	id := j.jobID()
	if id == "" {
		return nil
	}
	var errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, "scancel", id)
	cmd.Dir = j.spec.RunPath
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return &model.SchedulerError{RunID: id, Step: j.spec.JobName, Phase: "cancel", Err: fmt.Errorf("scancel: %s: %w", errOut.String(), err)}
	}
	return nil
}

func (j *SlurmJob) SubmittedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.submittedAt
}
