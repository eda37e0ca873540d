// Package addcode implements C-Star's Additional Code component: an
// ordered list of plain-text files (namelists, compile-time mods)
// sourced either from a local directory or a subdirectory of a git
// repository.
package addcode

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/me/gowe/internal/stager"
	"github.com/me/gowe/pkg/model"
	"github.com/me/gowe/pkg/resource"
)

// Stager materializes model.AdditionalCode into a target directory.
type Stager struct {
	stager *stager.Stager
	logger *slog.Logger
}

// New creates a Stager backed by the given underlying file/repo Stager.
func New(s *stager.Stager, logger *slog.Logger) *Stager {
	return &Stager{stager: s, logger: logger.With("component", "addcode")}
}

// Stage materializes ac.Files into destDir, cloning ac.Source to
// cloneDir first when it is a repository resource. After a successful
// call, every name in ac.Files exists as a file directly under destDir.
func (s *Stager) Stage(ctx context.Context, ac *model.AdditionalCode, cloneDir, destDir string) error {
	scheme, _ := resource.ParseScheme(ac.Source.Location)
	if scheme == resource.SchemeGit {
		staged, err := s.stager.StageRepoFiles(ctx, &ac.Source, model.PathFilter{
			Directory: ac.Source.Subdir,
			Files:     ac.Files,
		}, cloneDir, destDir)
		if err != nil {
			return err
		}
		if err := s.checkComplete(staged, ac.Files); err != nil {
			return err
		}
		return nil
	}

	// Local source: each file is its own Resource rooted at ac.Source's
	// directory, since a local AdditionalCode has no single archive to
	// unpack.
	for _, name := range ac.Files {
		src := filepath.Join(ac.Source.Location, name)
		dst := filepath.Join(destDir, name)
		fileRes := model.Resource{Location: src}
		if err := s.stager.StageFile(ctx, &fileRes, dst, false); err != nil {
			return fmt.Errorf("addcode: stage %s: %w", name, err)
		}
	}
	return nil
}

// checkComplete verifies every declared file name was staged, per the
// invariant that the file list and the staged directory agree.
func (s *Stager) checkComplete(staged, want []string) error {
	present := make(map[string]bool, len(staged))
	for _, p := range staged {
		present[filepath.Base(p)] = true
	}
	for _, name := range want {
		if !present[filepath.Base(name)] {
			return &model.ValidationError{
				Path:    "$.files",
				Message: fmt.Sprintf("declared file %q was not found among staged files", name),
			}
		}
	}
	return nil
}
