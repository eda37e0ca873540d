package retriever

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed index of (repo url, ref) -> clone path, so
// FetchRepo can answer "do we already have this cloned" without a
// filesystem walk across every Simulation's working directory.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenCache opens (or creates) the clone-reuse cache database at dbPath.
func OpenCache(dbPath string, logger *slog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("retriever: open cache %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("retriever: pragma wal: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS clones (
			url TEXT NOT NULL,
			ref TEXT NOT NULL,
			path TEXT NOT NULL,
			last_verified_at DATETIME NOT NULL,
			PRIMARY KEY (url, ref)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("retriever: migrate cache: %w", err)
	}
	return &Cache{db: db, logger: logger.With("component", "retriever_cache")}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the clone path recorded for (url, ref), if any.
func (c *Cache) Lookup(url, ref string) (string, bool) {
	var path string
	err := c.db.QueryRow(`SELECT path FROM clones WHERE url = ? AND ref = ?`, url, ref).Scan(&path)
	if err != nil {
		return "", false
	}
	return path, true
}

// Record upserts the clone path for (url, ref).
func (c *Cache) Record(url, ref, path string) {
	_, err := c.db.Exec(`
		INSERT INTO clones (url, ref, path, last_verified_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url, ref) DO UPDATE SET path = excluded.path, last_verified_at = excluded.last_verified_at`,
		url, ref, path, time.Now())
	if err != nil {
		c.logger.Warn("record clone failed", "url", url, "ref", ref, "error", err)
	}
}

// Invalidate removes any recorded clone for (url, ref), used when
// CSTAR_FRESH_CODEBASES forces a re-clone.
func (c *Cache) Invalidate(url, ref string) {
	if _, err := c.db.Exec(`DELETE FROM clones WHERE url = ? AND ref = ?`, url, ref); err != nil {
		c.logger.Warn("invalidate clone failed", "url", url, "ref", ref, "error", err)
	}
}
