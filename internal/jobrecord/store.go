// Package jobrecord persists the Job Record for one Workplan run: a
// single state.json file per run-ID, plus a secondary SQLite index over
// run-IDs so the Orchestrator can detect a prior run without opening
// every state.json on disk.
package jobrecord

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/me/gowe/pkg/model"
)

// Store reads and writes the Job Record for a single run-ID directory.
type Store struct {
	outDir string
	logger *slog.Logger
}

// New creates a Store rooted at outDir ($CSTAR_OUTDIR).
func New(outDir string, logger *slog.Logger) *Store {
	return &Store{outDir: outDir, logger: logger.With("component", "jobrecord")}
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.outDir, runID)
}

// StatePath returns the state.json path for runID.
func (s *Store) StatePath(runID string) string {
	return filepath.Join(s.runDir(runID), "state.json")
}

// Load reads the Job Record for runID. It returns (nil, nil) if no
// record exists yet.
func (s *Store) Load(runID string) (*model.JobRecord, error) {
	data, err := os.ReadFile(s.StatePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobrecord: read state for %s: %w", runID, err)
	}
	var rec model.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("jobrecord: parse state for %s: %w", runID, err)
	}
	return &rec, nil
}

// NewRecord creates a fresh in-memory Job Record for runID, not yet persisted.
func (s *Store) NewRecord(runID, digest string) *model.JobRecord {
	now := time.Now()
	return &model.JobRecord{
		RunID:          runID,
		WorkplanDigest: digest,
		Steps:          map[string]model.StepRecord{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Save atomically persists rec to its run-ID directory: marshal to JSON,
// write to a temp file, rename into place, the same technique
// internal/envstore uses for its flat key/value file.
func (s *Store) Save(rec *model.JobRecord) error {
	rec.UpdatedAt = time.Now()

	dir := s.runDir(rec.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jobrecord: create run directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("jobrecord: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state.json.tmp-*")
	if err != nil {
		return fmt.Errorf("jobrecord: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("jobrecord: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("jobrecord: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.StatePath(rec.RunID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("jobrecord: rename into place: %w", err)
	}
	return nil
}
