package handler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/me/gowe/pkg/model"
)

// LocalProcess runs a step as a plain subprocess, for generic-unix and
// macos-arm hosts with no batch scheduler.
type LocalProcess struct {
	spec   Spec
	logger *slog.Logger

	mu          sync.Mutex
	cmd         *exec.Cmd
	outFile     *os.File
	started     bool
	cancelled   bool
	returnCode  *int
	submittedAt time.Time

	// attachedPID is set instead of cmd when this handler was
	// reconstructed for a subprocess started by a prior process; its
	// exit status is unrecoverable, so Status can only report whether
	// the PID is still alive.
	attachedPID int
}

// NewLocalProcessAttached re-attaches to a subprocess already started
// by a prior process, identified by pid. Without the original
// *exec.Cmd its exit code is unrecoverable: Status reports RUNNING
// while the PID is alive and COMPLETED once it is gone.
func NewLocalProcessAttached(spec Spec, pid int, submittedAt time.Time, logger *slog.Logger) *LocalProcess {
	return &LocalProcess{
		spec:        spec,
		logger:      logger.With("component", "handler", "kind", "local"),
		started:     true,
		submittedAt: submittedAt,
		attachedPID: pid,
	}
}

// NewLocalProcess creates a LocalProcess handler for spec. OutputFile
// defaults to a timestamped file under RunPath when unset.
func NewLocalProcess(spec Spec, logger *slog.Logger) *LocalProcess {
	if spec.RunPath == "" {
		if wd, err := os.Getwd(); err == nil {
			spec.RunPath = wd
		}
	}
	if spec.OutputFile == "" {
		spec.OutputFile = spec.RunPath + "/" + defaultName("cstar_process_", time.Now()) + ".out"
	}
	return &LocalProcess{spec: spec, logger: logger.With("component", "handler", "kind", "local")}
}

func (p *LocalProcess) Submit(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Create(p.spec.OutputFile)
	if err != nil {
		return &model.SchedulerError{Step: p.spec.JobName, Phase: "submit", Err: err}
	}
	p.outFile = f

	fields := strings.Fields(p.spec.Commands)
	if len(fields) == 0 {
		f.Close()
		return &model.SchedulerError{Step: p.spec.JobName, Phase: "submit", Err: fmt.Errorf("empty command")}
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = p.spec.RunPath
	cmd.Stdout = f
	cmd.Stderr = f
	for k, v := range p.spec.EnvVars {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if err := cmd.Start(); err != nil {
		f.Close()
		return &model.SchedulerError{Step: p.spec.JobName, Phase: "submit", Err: err}
	}
	p.cmd = cmd
	p.started = true
	p.submittedAt = time.Now()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		code := 0
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		p.returnCode = &code
		if p.outFile != nil {
			p.outFile.Close()
			p.outFile = nil
		}
	}()

	return nil
}

func (p *LocalProcess) Status(ctx context.Context) (model.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return model.JobStatusUnsubmitted, nil
	}
	if p.attachedPID != 0 {
		if processAlive(p.attachedPID) {
			return model.JobStatusRunning, nil
		}
		return model.JobStatusCompleted, nil
	}
	if p.returnCode == nil {
		return model.JobStatusRunning, nil
	}
	if p.cancelled {
		return model.JobStatusCancelled, nil
	}
	if *p.returnCode == 0 {
		return model.JobStatusCompleted, nil
	}
	return model.JobStatusFailed, nil
}

// processAlive reports whether pid refers to a running process, the
// same liveness check internal/jobrecord uses for its lockfile.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Cancel sends os.Interrupt (SIGINT), escalating to SIGKILL if the process does not
// exit within five seconds.
func (p *LocalProcess) Cancel(ctx context.Context) error {
	p.mu.Lock()
	pid := p.attachedPID
	cmd := p.cmd
	running := p.started && p.returnCode == nil
	p.mu.Unlock()

	if pid != 0 {
		if proc, err := os.FindProcess(pid); err == nil {
			_ = proc.Signal(os.Interrupt)
		}
		p.mu.Lock()
		p.cancelled = true
		p.mu.Unlock()
		return nil
	}

	if !running || cmd == nil || cmd.Process == nil {
		p.logger.Info("cannot cancel, job not running")
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
	}

	p.mu.Lock()
	p.cancelled = true
	p.mu.Unlock()
	return nil
}

func (p *LocalProcess) Script() string     { return p.spec.Commands }
func (p *LocalProcess) ScriptPath() string { return p.spec.ScriptPath }
func (p *LocalProcess) OutputFile() string { return p.spec.OutputFile }

// ID returns the OS PID of the running subprocess, or "" before submit.
func (p *LocalProcess) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attachedPID != 0 {
		return strconv.Itoa(p.attachedPID)
	}
	if p.cmd == nil || p.cmd.Process == nil {
		return ""
	}
	return strconv.Itoa(p.cmd.Process.Pid)
}

func (p *LocalProcess) Updates(ctx context.Context, seconds int) (<-chan string, error) {
	return tailOutput(ctx, p.spec.OutputFile, seconds)
}

func (p *LocalProcess) SubmittedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submittedAt
}
