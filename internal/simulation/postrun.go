package simulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/me/gowe/pkg/model"
)

// Merger joins a group of per-rank partitioned output files for one
// variable into a single global netCDF file. Like Partitioner, C-Star
// treats the actual merge tool as a black box.
type Merger interface {
	Merge(rankFiles []string, destPath string) error
}

// rankFilePattern recognizes ROMS's "<name>.<rank>.nc" per-rank output
// naming, grouping files that share the same base name before the
// trailing rank number.
var rankFilePattern = regexp.MustCompile(`^(.+)\.(\d+)\.nc$`)

// PostRun joins every per-rank partitioned output file into its global
// form using up to NProcsPost concurrent workers, one worker per
// variable group, mirroring the teacher's semaphore-gated fan-out.
// Partitioned intermediates for a group are removed only once that
// group's merge succeeds; any group that fails leaves its intermediates
// in place for inspection and causes PostRun to return the first error
// encountered, after every in-flight group finishes.
func (s *Simulation) PostRun(ctx context.Context, merger Merger) error {
	outDir := filepath.Join(s.Model.Directory, "output")
	groups, err := groupRankFiles(outDir)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}

	sem := newPostRunSemaphore(s.deps.NProcsPost)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		files := groups[name]
		if !sem.acquire(ctx) {
			mu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(name string, files []string) {
			defer wg.Done()
			defer sem.release()

			dest := filepath.Join(outDir, name+".nc")
			if err := merger.Merge(files, dest); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("simulation: merge %s: %w", name, err)
				}
				mu.Unlock()
				return
			}
			for _, f := range files {
				_ = os.Remove(f)
			}
		}(name, files)
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return s.transition(model.SimStateFinished)
}

// groupRankFiles scans dir for ROMS per-rank output files and groups
// their paths by shared base name.
func groupRankFiles(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	groups := map[string][]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := rankFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		groups[m[1]] = append(groups[m[1]], filepath.Join(dir, e.Name()))
	}
	for name := range groups {
		sort.Strings(groups[name])
	}
	return groups, nil
}

// postRunSemaphore bounds concurrent merge workers, ported from the
// teacher's counting-semaphore idiom for bounding DAG-step and scatter
// concurrency.
type postRunSemaphore struct {
	ch chan struct{}
}

func newPostRunSemaphore(n int) *postRunSemaphore {
	if n <= 0 {
		return nil
	}
	return &postRunSemaphore{ch: make(chan struct{}, n)}
}

func (s *postRunSemaphore) acquire(ctx context.Context) bool {
	if s == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *postRunSemaphore) release() {
	if s == nil {
		return
	}
	<-s.ch
}
