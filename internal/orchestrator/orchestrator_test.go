package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/internal/jobrecord"
	"github.com/me/gowe/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeHandler struct {
	id       string
	statuses []model.JobStatus
	next     int
}

func (f *fakeHandler) Submit(ctx context.Context) error { return nil }
func (f *fakeHandler) Status(ctx context.Context) (model.JobStatus, error) {
	if f.next >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	s := f.statuses[f.next]
	f.next++
	return s, nil
}
func (f *fakeHandler) Cancel(ctx context.Context) error { return nil }
func (f *fakeHandler) Updates(ctx context.Context, seconds int) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (f *fakeHandler) ID() string            { return f.id }
func (f *fakeHandler) Script() string        { return "" }
func (f *fakeHandler) ScriptPath() string    { return "/tmp/" + f.id + ".sh" }
func (f *fakeHandler) OutputFile() string    { return "/tmp/" + f.id + ".out" }
func (f *fakeHandler) SubmittedAt() time.Time { return time.Time{} }

type fakeRunner struct {
	dispatched  []string
	statusesOf  map[string][]model.JobStatus
	finalizeErr map[string]bool
}

func (r *fakeRunner) Dispatch(ctx context.Context, step model.Step, workDir string) (handler.Handler, string, error) {
	r.dispatched = append(r.dispatched, step.Name)
	statuses := r.statusesOf[step.Name]
	if statuses == nil {
		statuses = []model.JobStatus{model.JobStatusCompleted}
	}
	h := &fakeHandler{id: step.Name + "-job", statuses: statuses}
	return h, h.ScriptPath(), nil
}

func (r *fakeRunner) Reattach(ctx context.Context, step model.Step, rec model.StepRecord) (handler.Handler, error) {
	return &fakeHandler{id: rec.HandlerID, statuses: []model.JobStatus{model.JobStatusCompleted}}, nil
}

func (r *fakeRunner) Finalize(ctx context.Context, step model.Step, rec model.StepRecord) error {
	if r.finalizeErr != nil && r.finalizeErr[step.Name] {
		return fmt.Errorf("finalize %s: boom", step.Name)
	}
	return nil
}

func testWorkplan() *model.Workplan {
	return &model.Workplan{
		Name: "chain",
		Steps: []model.Step{
			{Name: "warmup"},
			{Name: "main", DependsOn: []string{"warmup"}},
		},
	}
}

func TestRun_LinearChainCompletes(t *testing.T) {
	jobs := jobrecord.New(t.TempDir(), testLogger())
	runner := &fakeRunner{statusesOf: map[string][]model.JobStatus{}}
	o := New(jobs, runner, testLogger())
	o.PollInterval = time.Millisecond

	wp := testWorkplan()
	if err := o.Run(context.Background(), wp, "R1", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := jobs.Load("R1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Steps["warmup"].Status != model.StepStateSuccess {
		t.Errorf("warmup status = %s, want SUCCESS", rec.Steps["warmup"].Status)
	}
	if rec.Steps["main"].Status != model.StepStateSuccess {
		t.Errorf("main status = %s, want SUCCESS", rec.Steps["main"].Status)
	}
	if len(runner.dispatched) != 2 {
		t.Errorf("dispatched = %v, want both steps dispatched", runner.dispatched)
	}
}

func TestRun_FailedStepSkipsDependents(t *testing.T) {
	jobs := jobrecord.New(t.TempDir(), testLogger())
	runner := &fakeRunner{statusesOf: map[string][]model.JobStatus{
		"warmup": {model.JobStatusFailed},
	}}
	o := New(jobs, runner, testLogger())
	o.PollInterval = time.Millisecond

	wp := testWorkplan()
	if err := o.Run(context.Background(), wp, "R2", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, _ := jobs.Load("R2")
	if rec.Steps["warmup"].Status != model.StepStateFailed {
		t.Errorf("warmup status = %s, want FAILED", rec.Steps["warmup"].Status)
	}
	if rec.Steps["main"].Status != model.StepStateSkipped {
		t.Errorf("main status = %s, want SKIPPED", rec.Steps["main"].Status)
	}
	for _, name := range runner.dispatched {
		if name == "main" {
			t.Error("main should never have been dispatched")
		}
	}
}

func TestRun_FlakyTerminalReadingDoesNotFinalizeEarly(t *testing.T) {
	jobs := jobrecord.New(t.TempDir(), testLogger())
	runner := &fakeRunner{statusesOf: map[string][]model.JobStatus{
		// A single spurious COMPLETED reading, reverting to RUNNING,
		// then the real COMPLETED twice in a row.
		"warmup": {model.JobStatusCompleted, model.JobStatusRunning, model.JobStatusCompleted, model.JobStatusCompleted},
	}}
	o := New(jobs, runner, testLogger())
	o.PollInterval = time.Millisecond

	wp := testWorkplan()
	if err := o.Run(context.Background(), wp, "R5", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := jobs.Load("R5")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Steps["warmup"].Status != model.StepStateSuccess {
		t.Errorf("warmup status = %s, want SUCCESS (should still finalize once confirmed)", rec.Steps["warmup"].Status)
	}
}

func TestRun_FinalizeErrorFailsStep(t *testing.T) {
	jobs := jobrecord.New(t.TempDir(), testLogger())
	runner := &fakeRunner{
		statusesOf:  map[string][]model.JobStatus{},
		finalizeErr: map[string]bool{"warmup": true},
	}
	o := New(jobs, runner, testLogger())
	o.PollInterval = time.Millisecond

	wp := testWorkplan()
	if err := o.Run(context.Background(), wp, "R4", false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec, err := jobs.Load("R4")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Steps["warmup"].Status != model.StepStateFailed {
		t.Errorf("warmup status = %s, want FAILED (Finalize error should fail the step)", rec.Steps["warmup"].Status)
	}
	if rec.Steps["main"].Status != model.StepStateSkipped {
		t.Errorf("main status = %s, want SKIPPED", rec.Steps["main"].Status)
	}
}

func TestRun_RunIDConflictWithoutForce(t *testing.T) {
	jobs := jobrecord.New(t.TempDir(), testLogger())
	runner := &fakeRunner{statusesOf: map[string][]model.JobStatus{}}
	o := New(jobs, runner, testLogger())
	o.PollInterval = time.Millisecond

	wp := testWorkplan()
	if err := o.Run(context.Background(), wp, "R3", false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	changed := testWorkplan()
	changed.Steps = append(changed.Steps, model.Step{Name: "extra"})
	err := o.Run(context.Background(), changed, "R3", false)
	if _, ok := err.(*model.RunIDConflict); !ok {
		t.Fatalf("got %v (%T), want *model.RunIDConflict", err, err)
	}
}
