package handler

import (
	"bytes"
	"context"
	"encoding/json"
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

var pbsJobIDPattern = regexp.MustCompile(`^\d+\.\S+$`)

// PBSJob submits a step as a PBS batch job via qsub/qstat/qdel. PBS
// requires explicit node/cpus-per-node distribution, unlike Slurm's
// flat --ntasks; distributeNodes fills this in when the caller gave
// neither.
type PBSJob struct {
	spec   Spec
	logger *slog.Logger

	mu          sync.Mutex
	id          string
	submittedAt time.Time
}

// NewPBSJob creates a PBSJob handler. If spec.Nodes and
// spec.CPUsPerNode are both zero, they are derived from spec.CPUs and
// coresPerNodeOnSystem via distributeNodes.
func NewPBSJob(spec Spec, coresPerNodeOnSystem int, logger *slog.Logger) *PBSJob {
	if spec.Nodes == 0 && spec.CPUsPerNode == 0 && spec.CPUs > 0 && coresPerNodeOnSystem > 0 {
		spec.Nodes, spec.CPUsPerNode = distributeNodes(spec.CPUs, coresPerNodeOnSystem)
	} else if spec.Nodes == 0 && spec.CPUsPerNode > 0 {
		spec.Nodes = (spec.CPUs + spec.CPUsPerNode - 1) / spec.CPUsPerNode
	} else if spec.CPUsPerNode == 0 && spec.Nodes > 0 {
		spec.CPUsPerNode = spec.CPUs / spec.Nodes
	}
	return &PBSJob{spec: spec, logger: logger.With("component", "handler", "kind", "pbs")}
}

// NewPBSJobAttached re-attaches to a PBS job already submitted by a
// prior process, so polling can resume via qstat without resubmitting.
func NewPBSJobAttached(spec Spec, coresPerNodeOnSystem int, id string, submittedAt time.Time, logger *slog.Logger) *PBSJob {
	j := NewPBSJob(spec, coresPerNodeOnSystem, logger)
	j.id = id
	j.submittedAt = submittedAt
	return j
}

// Script renders the #PBS batch script for this job.
func (j *PBSJob) Script() string {
	var b strings.Builder
	b.WriteString("#PBS -S /bin/bash\n")
	fmt.Fprintf(&b, "#PBS -N %s\n", j.spec.JobName)
	fmt.Fprintf(&b, "#PBS -o %s\n", j.spec.OutputFile)
	fmt.Fprintf(&b, "#PBS -A %s\n", j.spec.AccountKey)
	fmt.Fprintf(&b, "#PBS -l select=%d:ncpus=%d,walltime=%s\n", j.spec.Nodes, j.spec.CPUsPerNode, j.spec.Walltime)
	fmt.Fprintf(&b, "#PBS -q %s\n", j.spec.QueueName)
	b.WriteString("#PBS -j oe\n")
	b.WriteString("#PBS -k eod\n")
	b.WriteString("#PBS -V\n")
	for k, v := range j.spec.Directives {
		fmt.Fprintf(&b, "#PBS %s %s\n", k, v)
	}
	b.WriteString("cd ${PBS_O_WORKDIR}\n")
	b.WriteString("\n")
	b.WriteString(j.spec.Commands)
	b.WriteString("\n")
	return b.String()
}

func (j *PBSJob) ScriptPath() string { return j.spec.ScriptPath }
func (j *PBSJob) OutputFile() string { return j.spec.OutputFile }

func (j *PBSJob) saveScript() error {
	return os.WriteFile(j.spec.ScriptPath, []byte(j.Script()), 0o755)
}

// Submit writes the batch script and hands it to qsub.
func (j *PBSJob) Submit(ctx context.Context) error {
	if err := j.saveScript(); err != nil {
		return &model.SchedulerError{Step: j.spec.JobName, Phase: "submit", Err: err}
	}

	cmd := exec.CommandContext(ctx, "qsub", j.spec.ScriptPath)
	cmd.Dir = j.spec.RunPath
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return &model.SchedulerError{Step: j.spec.JobName, Phase: "submit", Err: fmt.Errorf("qsub: %s: %w", errOut.String(), err)}
	}

	jobIDFull := strings.TrimSpace(out.String())
	if !pbsJobIDPattern.MatchString(jobIDFull) {
		return &model.SchedulerError{Step: j.spec.JobName, Phase: "submit", Err: fmt.Errorf("unexpected job ID format from qsub: %q", jobIDFull)}
	}

	j.mu.Lock()
	j.id = jobIDFull
	j.submittedAt = time.Now()
	j.mu.Unlock()
	return nil
}

func (j *PBSJob) jobID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// ID returns the PBS job ID assigned by qsub, or "" before submit.
func (j *PBSJob) ID() string { return j.jobID() }

func (j *PBSJob) Updates(ctx context.Context, seconds int) (<-chan string, error) {
	return tailOutput(ctx, j.spec.OutputFile, seconds)
}

type qstatJob struct {
	JobState  string `json:"job_state"`
	ExitStatus int   `json:"Exit_status"`
}

type qstatOutput struct {
	Jobs map[string]qstatJob `json:"Jobs"`
}

// Status polls qstat's JSON output for this job's state.
func (j *PBSJob) Status(ctx context.Context) (model.JobStatus, error) {
	id := j.jobID()
	if id == "" {
		return model.JobStatusUnsubmitted, nil
	}

	var out bytes.Buffer
	err := withRetry(ctx, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, func() error {
		out.Reset()
		cmd := exec.CommandContext(ctx, "qstat", "-x", "-f", "-F", "json", id)
		cmd.Stdout = &out
		return cmd.Run()
	})
	if err != nil {
		return model.JobStatusUnknown, &model.SchedulerError{RunID: id, Step: j.spec.JobName, Phase: "poll", Err: err}
	}

	var parsed qstatOutput
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return model.JobStatusUnknown, &model.SchedulerError{RunID: id, Step: j.spec.JobName, Phase: "poll", Err: fmt.Errorf("parse qstat JSON: %w", err)}
	}
	job, ok := parsed.Jobs[id]
	if !ok {
		for _, v := range parsed.Jobs {
			job, ok = v, true
			break
		}
	}
	if !ok {
		return model.JobStatusUnknown, &model.SchedulerError{RunID: id, Step: j.spec.JobName, Phase: "poll", Err: fmt.Errorf("job %s not found in qstat output", id)}
	}

	switch job.JobState {
	case "Q":
		return model.JobStatusPending, nil
	case "R":
		return model.JobStatusRunning, nil
	case "C":
		return model.JobStatusCompleted, nil
	case "H":
		return model.JobStatusHeld, nil
	case "F":
		if job.ExitStatus == 0 {
			return model.JobStatusCompleted, nil
		}
		return model.JobStatusFailed, nil
	case "E":
		return model.JobStatusEnding, nil
	default:
		return model.JobStatusUnknown, nil
	}
}

// Cancel invokes qdel on this job's ID, refusing if the job is already terminal.
func (j *PBSJob) Cancel(ctx context.Context) error {
	id := j.jobID()
	if id == "" {
		return nil
	}
	status, err := j.Status(ctx)
	if err != nil {
		return err
	}
	if status.IsTerminal() {
		j.logger.Info("cannot cancel job in terminal state", "status", status)
		return nil
	}

	var errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, "qdel", id)
	cmd.Dir = j.spec.RunPath
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return &model.SchedulerError{RunID: id, Step: j.spec.JobName, Phase: "cancel", Err: fmt.Errorf("qdel: %s: %w", errOut.String(), err)}
	}
	return nil
}

func (j *PBSJob) SubmittedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.submittedAt
}
