package jobrecord

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a SQLite-backed secondary index over run-IDs, so a caller can
// check whether a run-ID has been seen before without opening its
// state.json, mirroring internal/retriever's clone-reuse cache.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenIndex opens (or creates) the run index database at dbPath
// (conventionally $CSTAR_OUTDIR/runs.db).
func OpenIndex(dbPath string, logger *slog.Logger) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("jobrecord: open run index %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobrecord: pragma wal: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("jobrecord: migrate run index: %w", err)
	}
	return &Index{db: db, logger: logger.With("component", "jobrecord_index")}, nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Digest returns the stored workplan_digest for runID, if known.
func (idx *Index) Digest(runID string) (string, bool) {
	var digest string
	err := idx.db.QueryRow(`SELECT digest FROM runs WHERE run_id = ?`, runID).Scan(&digest)
	if err != nil {
		return "", false
	}
	return digest, true
}

// Record upserts the digest recorded for runID.
func (idx *Index) Record(runID, digest string) {
	_, err := idx.db.Exec(`
		INSERT INTO runs (run_id, digest, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET digest = excluded.digest, updated_at = excluded.updated_at`,
		runID, digest, time.Now())
	if err != nil {
		idx.logger.Warn("record run digest failed", "run_id", runID, "error", err)
	}
}
