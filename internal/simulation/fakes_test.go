package simulation

import (
	"context"
	"time"

	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/pkg/model"
)

type fakeCodebases struct {
	getCalls   int
	buildCalls int
	buildErr   error
}

func (f *fakeCodebases) Get(ctx context.Context, cb *model.ExternalCodebase, targetRoot string, fresh bool) error {
	f.getCalls++
	cb.LocalRoot = targetRoot
	return nil
}

func (f *fakeCodebases) Build(ctx context.Context, cb *model.ExternalCodebase, compiler string, args ...string) error {
	f.buildCalls++
	return f.buildErr
}

type fakeAddCode struct {
	stageCalls int
}

func (f *fakeAddCode) Stage(ctx context.Context, ac *model.AdditionalCode, cloneDir, destDir string) error {
	f.stageCalls++
	return nil
}

type fakeDatasets struct {
	materializeCalls int
}

func (f *fakeDatasets) Materialize(ctx context.Context, ds *model.InputDataset, outDir string) error {
	f.materializeCalls++
	ds.OutputPaths = []string{outDir + "/fake.nc"}
	return nil
}

type fakeHandler struct {
	id string
}

func (f *fakeHandler) Submit(ctx context.Context) error { return nil }
func (f *fakeHandler) Status(ctx context.Context) (model.JobStatus, error) {
	return model.JobStatusRunning, nil
}
func (f *fakeHandler) Cancel(ctx context.Context) error { return nil }
func (f *fakeHandler) Updates(ctx context.Context, seconds int) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (f *fakeHandler) ID() string              { return f.id }
func (f *fakeHandler) Script() string           { return "" }
func (f *fakeHandler) ScriptPath() string       { return "" }
func (f *fakeHandler) OutputFile() string       { return "" }
func (f *fakeHandler) SubmittedAt() time.Time   { return time.Time{} }

type fakeHandlers struct {
	newCalls int
	kind     model.HandlerKind
	lastSpec handler.Spec
}

func (f *fakeHandlers) New(kind model.HandlerKind, spec handler.Spec) (handler.Handler, error) {
	f.newCalls++
	f.kind = kind
	f.lastSpec = spec
	return &fakeHandler{id: "fake-42"}, nil
}

func (f *fakeHandlers) Attach(kind model.HandlerKind, spec handler.Spec, id string, submittedAt time.Time) (handler.Handler, error) {
	f.kind = kind
	return &fakeHandler{id: id}, nil
}

type fakePartitioner struct {
	calls int
}

func (f *fakePartitioner) Partition(outputPath string, nRanks int, destDir string) ([]string, error) {
	f.calls++
	var out []string
	for r := 0; r < nRanks; r++ {
		out = append(out, outputPath)
	}
	return out, nil
}

type fakeMerger struct {
	merged [][]string
	failOn string
}

func (f *fakeMerger) Merge(rankFiles []string, destPath string) error {
	f.merged = append(f.merged, rankFiles)
	if f.failOn != "" && destPath == f.failOn {
		return errTest
	}
	return nil
}

var errTest = fakeErr("merge failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
