package simulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/me/gowe/internal/codebase"
	"github.com/me/gowe/internal/dataset"
	"github.com/me/gowe/pkg/model"
)

const buildFingerprintFile = ".cstar-build-fingerprint"

// Setup installs every codebase, stages runtime/compile-time code, and
// materializes every declared dataset. Each step is independently
// idempotent, so re-running Setup after a partial failure only redoes
// the work that did not complete.
func (s *Simulation) Setup(ctx context.Context) error {
	for _, cb := range s.allCodebases() {
		target := codebase.DefaultTargetRoot(s.Model.Directory, cb.SourceRepo)
		if err := s.deps.Codebases.Get(ctx, cb, target, s.deps.FreshCodebases); err != nil {
			return fmt.Errorf("simulation: install %s: %w", cb.Name, err)
		}
	}

	codeDir := filepath.Join(s.Model.Directory, "additional_code")
	if err := s.stageAdditionalCode(ctx, &s.Model.RuntimeCode, filepath.Join(codeDir, "runtime")); err != nil {
		return err
	}
	if err := s.stageAdditionalCode(ctx, &s.Model.CompileTimeCode, filepath.Join(codeDir, "compile_time")); err != nil {
		return err
	}

	inputDir := filepath.Join(s.Model.Directory, "input_datasets")
	for i := range s.Model.Datasets {
		if err := s.deps.Datasets.Materialize(ctx, &s.Model.Datasets[i], inputDir); err != nil {
			return err
		}
	}

	want := model.DateRange{Start: s.Model.StartDate, End: s.Model.EndDate}
	for _, role := range s.requiredRoles() {
		if err := dataset.RequireCoverage(role, want, s.Model.Datasets); err != nil {
			return err
		}
	}

	return s.transition(model.SimStateSetupOK)
}

// requiredRoles returns the distinct dataset roles attached to the
// Simulation: every role a Blueprint declares a dataset for is required
// to cover the run's date window.
func (s *Simulation) requiredRoles() []model.DatasetRole {
	seen := map[model.DatasetRole]bool{}
	var roles []model.DatasetRole
	for _, ds := range s.Model.Datasets {
		if !seen[ds.Role] {
			seen[ds.Role] = true
			roles = append(roles, ds.Role)
		}
	}
	return roles
}

func (s *Simulation) stageAdditionalCode(ctx context.Context, ac *model.AdditionalCode, destDir string) error {
	if len(ac.Files) == 0 {
		return nil
	}
	cloneDir := filepath.Join(s.Model.Directory, ".clones", filepath.Base(ac.Source.Location))
	return s.deps.AddCode.Stage(ctx, ac, cloneDir, destDir)
}

func (s *Simulation) allCodebases() []*model.ExternalCodebase {
	cb := &s.Model.Codebases
	return []*model.ExternalCodebase{&cb.ROMS, &cb.RunTime, &cb.CompileTime, &cb.MARBL}
}

// Build compiles the ROMS codebase against the Simulation's current
// Discretization. If a prior build recorded a different discretization
// fingerprint, Build refuses and reports a ValidationError naming
// Clean as the required remedy, rather than silently rebuilding over
// stale object files compiled for a different rank count.
func (s *Simulation) Build(ctx context.Context) error {
	fpPath := s.fingerprintPath()
	fp := s.Model.Discretization.Fingerprint()

	if existing, err := os.ReadFile(fpPath); err == nil {
		if string(existing) != fp {
			return &model.ValidationError{
				Path:    "$.discretization",
				Message: fmt.Sprintf("build was compiled for fingerprint %q, current discretization is %q; call Clean before rebuilding", existing, fp),
			}
		}
		return s.transition(model.SimStateBuilt)
	}

	compiler := "gnu"
	if s.deps.System != nil {
		compiler = s.deps.System.Compiler
	}
	if err := s.deps.Codebases.Build(ctx, &s.Model.Codebases.ROMS,
		compiler,
		fmt.Sprintf("NP_XI=%d", s.Model.Discretization.NProcsX),
		fmt.Sprintf("NP_ETA=%d", s.Model.Discretization.NProcsY),
	); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fpPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(fpPath, []byte(fp), 0o644); err != nil {
		return err
	}
	return s.transition(model.SimStateBuilt)
}

// Clean removes the recorded build fingerprint, allowing the next Build
// to recompile for a changed Discretization.
func (s *Simulation) Clean() error {
	err := os.Remove(s.fingerprintPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Simulation) fingerprintPath() string {
	return filepath.Join(s.Model.Directory, buildFingerprintFile)
}
