package handler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/gowe/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLocalProcess_SubmitCompletes(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{
		Commands:   "echo hello",
		RunPath:    dir,
		OutputFile: filepath.Join(dir, "job.out"),
		JobName:    "test-job",
	}
	p := NewLocalProcess(spec, testLogger())

	if err := p.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var status model.JobStatus
	for time.Now().Before(deadline) {
		var err error
		status, err = p.Status(context.Background())
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.IsTerminal() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status != model.JobStatusCompleted {
		t.Fatalf("final status = %q, want COMPLETED", status)
	}

	out, err := os.ReadFile(spec.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q", out)
	}
}

func TestLocalProcess_IDIsPID(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{Commands: "sleep 0.2", RunPath: dir, OutputFile: filepath.Join(dir, "job.out")}
	p := NewLocalProcess(spec, testLogger())
	if err := p.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.ID() == "" {
		t.Error("ID() empty after submit")
	}
}

func TestLocalProcess_UpdatesStreamsOutput(t *testing.T) {
	dir := t.TempDir()
	spec := Spec{Commands: "echo hi", RunPath: dir, OutputFile: filepath.Join(dir, "job.out")}
	p := NewLocalProcess(spec, testLogger())
	if err := p.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for {
		if status, _ := p.Status(context.Background()); status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lines, err := p.Updates(ctx, 1)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	var got string
	for line := range lines {
		got += line
	}
	if !strings.Contains(got, "hi") {
		t.Errorf("streamed output = %q, want to contain %q", got, "hi")
	}
}

func TestLocalProcess_UnsubmittedStatus(t *testing.T) {
	p := NewLocalProcess(Spec{Commands: "true"}, testLogger())
	status, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != model.JobStatusUnsubmitted {
		t.Errorf("status = %q, want UNSUBMITTED", status)
	}
}

func TestSlurmJob_ScriptContainsDirectives(t *testing.T) {
	spec := Spec{
		Commands:   "roms roms.in",
		RunPath:    "/tmp/run",
		OutputFile: "/tmp/run/job.out",
		JobName:    "roms-run",
		AccountKey: "acct123",
		QueueName:  "regular",
		Walltime:   "12:00:00",
		CPUs:       256,
		Directives: map[string]string{"--constraint": "cpu"},
	}
	j := NewSlurmJob(spec, testLogger())
	script := j.Script()

	for _, want := range []string{
		"#SBATCH --job-name=roms-run",
		"#SBATCH --account=acct123",
		"#SBATCH --partition=regular",
		"#SBATCH --ntasks=256",
		"#SBATCH --time=12:00:00",
		"#SBATCH --constraint cpu",
		"roms roms.in",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestSlurmJob_UnsubmittedStatus(t *testing.T) {
	j := NewSlurmJob(Spec{JobName: "x"}, testLogger())
	status, err := j.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != model.JobStatusUnsubmitted {
		t.Errorf("status = %q, want UNSUBMITTED", status)
	}
}

func TestDistributeNodes(t *testing.T) {
	nodes, cpn := distributeNodes(192, 128)
	if nodes != 2 || cpn != 96 {
		t.Errorf("distributeNodes(192, 128) = (%d, %d), want (2, 96)", nodes, cpn)
	}
}

func TestPBSJob_DerivesNodeDistribution(t *testing.T) {
	j := NewPBSJob(Spec{CPUs: 192, JobName: "pbs-run", QueueName: "regular", AccountKey: "a", Walltime: "06:00:00"}, 128, testLogger())
	script := j.Script()
	if !strings.Contains(script, "select=2:ncpus=96") {
		t.Errorf("script missing derived node distribution:\n%s", script)
	}
}

func TestPBSJob_UnsubmittedStatus(t *testing.T) {
	j := NewPBSJob(Spec{JobName: "x"}, 128, testLogger())
	status, err := j.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != model.JobStatusUnsubmitted {
		t.Errorf("status = %q, want UNSUBMITTED", status)
	}
}

func TestRegistry_New(t *testing.T) {
	r := NewRegistry(128, testLogger())

	if _, err := r.New(model.HandlerLocal, Spec{}); err != nil {
		t.Errorf("local: %v", err)
	}
	if _, err := r.New(model.HandlerSlurm, Spec{}); err != nil {
		t.Errorf("slurm: %v", err)
	}
	if _, err := r.New(model.HandlerPBS, Spec{}); err != nil {
		t.Errorf("pbs: %v", err)
	}
	if _, err := r.New("bogus", Spec{}); err == nil {
		t.Error("expected error for unknown handler kind")
	}
}
