package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/me/gowe/internal/handler"
	"github.com/me/gowe/pkg/model"
)

const snapshotFile = ".cstar-simulation.json"

// Persist writes a JSON snapshot of the underlying model.Simulation to
// <directory>/.cstar-simulation.json, the same marshal-nested-structs-
// to-one-blob discipline the teacher applies when storing a workflow's
// definition, here targeting a plain file since a Simulation is scoped
// to its own working directory rather than a shared database.
func (s *Simulation) Persist() error {
	data, err := json.MarshalIndent(s.Model, "", "  ")
	if err != nil {
		return fmt.Errorf("simulation: marshal snapshot: %w", err)
	}

	path := filepath.Join(s.Model.Directory, snapshotFile)
	tmp, err := os.CreateTemp(s.Model.Directory, ".cstar-simulation.json.tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Restore loads a Simulation snapshot from dir and, if it recorded an
// attached handler, re-queries the scheduler through the Handler
// Registry to re-attach a live Handler rather than trusting the
// snapshot's last-known status.
func Restore(ctx context.Context, dir string, deps Deps) (*Simulation, error) {
	path := filepath.Join(dir, snapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("simulation: read snapshot: %w", err)
	}

	m := &model.Simulation{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("simulation: unmarshal snapshot: %w", err)
	}

	s := New(m, deps)

	if m.HandlerKind != "" && m.HandlerRef != "" {
		spec := handler.Spec{
			JobName:    m.Name,
			OutputFile: filepath.Join(m.Directory, "output", m.Name+".out"),
		}
		h, err := deps.Handlers.Attach(m.HandlerKind, spec, m.HandlerRef, time.Time{})
		if err != nil {
			return s, err
		}
		if _, err := h.Status(ctx); err != nil {
			return s, fmt.Errorf("simulation: re-attach handler %s: %w", m.HandlerRef, err)
		}
		s.handler = h
	}

	return s, nil
}
