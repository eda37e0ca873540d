// Package codebase implements C-Star's External Codebase lifecycle:
// clone, checkout, build, and persist the install root so subsequent
// sessions skip the reinstall.
package codebase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/me/gowe/internal/envstore"
	"github.com/me/gowe/internal/retriever"
	"github.com/me/gowe/pkg/model"
)

// Installer installs and tracks ExternalCodebase config status.
type Installer struct {
	retriever *retriever.Retriever
	env       *envstore.Store
	logger    *slog.Logger
}

// New creates an Installer.
func New(r *retriever.Retriever, env *envstore.Store, logger *slog.Logger) *Installer {
	return &Installer{retriever: r, env: env, logger: logger.With("component", "codebase")}
}

// ConfigStatus reports how cb's recorded install compares to its
// declared source_repo/checkout_target, without mutating any state.
func (i *Installer) ConfigStatus(ctx context.Context, cb *model.ExternalCodebase) model.ConfigStatus {
	root, ok := i.env.Get(cb.RootEnvVar)
	if !ok || root == "" {
		return model.ConfigStatusAbsent
	}
	status, err := i.retriever.VerifyLocal(ctx, root, cb.SourceRepo, cb.CheckoutTarget)
	if err != nil {
		return model.ConfigStatusAbsent
	}
	switch status {
	case retriever.StatusMatches:
		return model.ConfigStatusConfigured
	case retriever.StatusWrongRef:
		return model.ConfigStatusWrongCommit
	case retriever.StatusWrongRemote:
		return model.ConfigStatusWrongRemote
	default:
		return model.ConfigStatusAbsent
	}
}

// Get installs cb under targetRoot if not already configured there, then
// records the install root in the Environment Store. Already-configured
// codebases are skipped unless fresh is true.
func (i *Installer) Get(ctx context.Context, cb *model.ExternalCodebase, targetRoot string, fresh bool) error {
	if cb.SourceRepo == "" {
		return nil
	}
	if !fresh {
		if i.ConfigStatus(ctx, cb) == model.ConfigStatusConfigured {
			root, _ := i.env.Get(cb.RootEnvVar)
			cb.LocalRoot = root
			i.logger.Info("codebase already configured, skipping install", "name", cb.Name, "root", root)
			return nil
		}
	}

	if _, err := i.retriever.FetchRepo(ctx, cb.SourceRepo, cb.CheckoutTarget, targetRoot); err != nil {
		return err
	}
	cb.LocalRoot = targetRoot
	i.env.Set(cb.RootEnvVar, targetRoot)
	return i.env.Flush()
}

// Build invokes the codebase's makefile with the given compiler family,
// capturing combined output into BuildError on a non-zero exit.
func (i *Installer) Build(ctx context.Context, cb *model.ExternalCodebase, compiler string, args ...string) error {
	cmdArgs := append([]string{fmt.Sprintf("COMPILER=%s", compiler)}, args...)
	cmd := exec.CommandContext(ctx, "make", cmdArgs...)
	cmd.Dir = cb.LocalRoot

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		return &model.BuildError{Codebase: cb.Name, Log: buf.String(), Err: err}
	}
	return nil
}

// DefaultTargetRoot returns the conventional externals/<name> install
// location beneath a Simulation's working directory.
func DefaultTargetRoot(simDir, repoURL string) string {
	return filepath.Join(simDir, "externals", filepath.Base(repoURL))
}
