// Package stager materializes C-Star Resources onto disk: plain file
// copies/downloads, and glob-filtered subdirectory copies out of a
// cloned repository.
package stager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/me/gowe/internal/retriever"
	"github.com/me/gowe/pkg/model"
	"github.com/me/gowe/pkg/resource"
)

// Stager materializes Resources into a target directory.
type Stager struct {
	retriever *retriever.Retriever
	logger    *slog.Logger
}

// New creates a Stager backed by the given Retriever.
func New(r *retriever.Retriever, logger *slog.Logger) *Stager {
	return &Stager{retriever: r, logger: logger.With("component", "stager")}
}

// StageFile materializes a single-file Resource at destPath. If the file
// already exists and its hash matches (when FileHash is set), this is a
// no-op. A mismatch is reported as IntegrityError unless force is true.
func (s *Stager) StageFile(ctx context.Context, res *model.Resource, destPath string, force bool) error {
	if !force {
		if ok, err := hashMatches(destPath, res.FileHash); err == nil && ok {
			res.WorkingPath = destPath
			return nil
		}
	}

	scheme, loc := resource.ParseScheme(res.Location)
	switch scheme {
	case resource.SchemeHTTPS, resource.SchemeHTTP:
		if err := s.retriever.FetchFile(ctx, loc, destPath, res.FileHash); err != nil {
			return err
		}
	default:
		if err := copyFile(loc, destPath); err != nil {
			return err
		}
		if res.FileHash != "" {
			ok, err := hashMatches(destPath, res.FileHash)
			if err != nil {
				return err
			}
			if !ok {
				s.logger.Warn("local file hash mismatch", "path", destPath)
			}
		}
	}
	res.WorkingPath = destPath
	return nil
}

// StageRepoFiles clones res (a git repository resource) if necessary and
// copies the files matched by filter out of it into destDir. Patterns in
// filter.Files may use doublestar globs (e.g. "*.nml", "**/*.yaml").
func (s *Stager) StageRepoFiles(ctx context.Context, res *model.Resource, filter model.PathFilter, cloneDir, destDir string) ([]string, error) {
	if _, err := s.retriever.FetchRepo(ctx, res.Location, res.CheckoutTarget, cloneDir); err != nil {
		return nil, err
	}

	root := cloneDir
	if filter.Directory != "" {
		root = filepath.Join(cloneDir, filter.Directory)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("stager: mkdir: %w", err)
	}

	var staged []string
	patterns := filter.Files
	if len(patterns) == 0 {
		patterns = []string{"**"}
	}

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, fmt.Errorf("stager: invalid pattern %q: %w", pattern, err)
		}
		for _, rel := range matches {
			src := filepath.Join(root, rel)
			info, err := os.Stat(src)
			if err != nil || info.IsDir() {
				continue
			}
			dst := filepath.Join(destDir, filepath.Base(rel))
			if err := copyFile(src, dst); err != nil {
				return nil, err
			}
			staged = append(staged, dst)
		}
	}
	res.WorkingPath = destDir
	return staged, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("stager: mkdir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("stager: open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("stager: create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("stager: copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func hashMatches(path, expected string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}
