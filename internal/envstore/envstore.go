// Package envstore implements C-Star's flat key/value Environment Store,
// persisted to $CSTAR_HOME/.cstar.env. External Codebase uses it to
// record install roots across process invocations.
package envstore

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is a flat key/value map backed by a single text file. It is read
// once on first use and written atomically via a temp-file-plus-rename.
// There is no concurrent-writer protection across processes: the policy
// is last-writer-wins, with a corrupted file logging a warning and
// reinitializing empty.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	values map[string]string
}

// New creates a Store for the given file path. The file is not read
// until the first Get, Set, Delete or Flush call.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger, values: map[string]string{}}
}

func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("envstore: cannot open, starting empty", "path", s.path, "error", err)
		}
		return
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			s.logger.Warn("envstore: corrupted line, reinitializing", "path", s.path, "line", line)
			s.values = map[string]string{}
			return
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("envstore: read error, starting empty", "path", s.path, "error", err)
		return
	}
	s.values = values
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	v, ok := s.values[key]
	return v, ok
}

// Set records key=value in memory. Call Flush to persist it.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	s.values[key] = value
}

// Delete removes key from the in-memory map. Call Flush to persist it.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	delete(s.values, key)
}

// Flush atomically writes the current contents to disk: a temp file in
// the same directory, then a rename.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.values[k])
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, ".cstar.env.tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
