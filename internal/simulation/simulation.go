// Package simulation implements C-Star's Simulation lifecycle: the root
// aggregate tying together codebase installation, additional code
// staging, input dataset materialization, runtime settings rendering,
// and execution handler dispatch behind the state machine
// CONSTRUCTED→SETUP_OK→BUILT→READY→RUNNING→FINISHED.
package simulation

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/internal/sysmgr"
	"github.com/me/gowe/pkg/model"
)

// CodebaseInstaller installs and builds an ExternalCodebase. Satisfied
// by *codebase.Installer; declared here so tests can substitute a fake
// without forking a real git clone or invoking make.
type CodebaseInstaller interface {
	Get(ctx context.Context, cb *model.ExternalCodebase, targetRoot string, fresh bool) error
	Build(ctx context.Context, cb *model.ExternalCodebase, compiler string, args ...string) error
}

// CodeStager materializes an AdditionalCode's declared files into a
// target directory. Satisfied by *addcode.Stager.
type CodeStager interface {
	Stage(ctx context.Context, ac *model.AdditionalCode, cloneDir, destDir string) error
}

// DatasetMaterializer resolves an InputDataset to on-disk netCDF files.
// Satisfied by *dataset.Materializer.
type DatasetMaterializer interface {
	Materialize(ctx context.Context, ds *model.InputDataset, outDir string) error
}

// HandlerFactory constructs an execution Handler for a given kind and
// Spec, or re-attaches one already identified by id. Satisfied by
// *handler.Registry.
type HandlerFactory interface {
	New(kind model.HandlerKind, spec handler.Spec) (handler.Handler, error)
	Attach(kind model.HandlerKind, spec handler.Spec, id string, submittedAt time.Time) (handler.Handler, error)
}

// Partitioner splits a netCDF input dataset across MPI ranks before a
// run. Like dataset.Generator, it is treated as a black box: C-Star
// does not implement or inspect the partitioning tool itself.
type Partitioner interface {
	Partition(outputPath string, nRanks int, destDir string) ([]string, error)
}

// Deps bundles the collaborators a Simulation needs, injected so tests
// can substitute fakes for every external boundary.
type Deps struct {
	Codebases CodebaseInstaller
	AddCode   CodeStager
	Datasets  DatasetMaterializer
	Handlers  HandlerFactory
	System    *sysmgr.Manager

	Partitioner    Partitioner
	NProcsPost     int
	FreshCodebases bool
	Logger         *slog.Logger
}

// Simulation wraps a model.Simulation with the collaborators needed to
// drive it through its lifecycle.
type Simulation struct {
	Model *model.Simulation
	deps  Deps

	handler handler.Handler
}

// New wraps m for lifecycle operations.
func New(m *model.Simulation, deps Deps) *Simulation {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "simulation", "name", m.Name)
	return &Simulation{Model: m, deps: deps}
}

// transition advances the Simulation's state, refusing any move not
// permitted by model.ValidSimTransitions.
func (s *Simulation) transition(next model.SimState) error {
	if !s.Model.State.CanTransitionTo(next) {
		return &model.ValidationError{
			Path:    "$.state",
			Message: "cannot move from " + string(s.Model.State) + " to " + string(next),
		}
	}
	s.Model.State = next
	return nil
}

// Handler returns the currently attached execution handler, or nil if
// the Simulation has not been run (or has not been reattached via
// Restore) this process.
func (s *Simulation) Handler() handler.Handler {
	return s.handler
}
