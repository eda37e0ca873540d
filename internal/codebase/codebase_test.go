package codebase

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/gowe/internal/envstore"
	"github.com/me/gowe/internal/retriever"
	"github.com/me/gowe/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestConfigStatus_Absent(t *testing.T) {
	dir := t.TempDir()
	env := envstore.New(filepath.Join(dir, ".cstar.env"), testLogger())
	inst := New(retriever.New(nil, testLogger()), env, testLogger())

	cb := &model.ExternalCodebase{Name: "roms", RootEnvVar: "ROMS_ROOT", SourceRepo: "https://example.com/roms.git", CheckoutTarget: "main"}
	if status := inst.ConfigStatus(context.Background(), cb); status != model.ConfigStatusAbsent {
		t.Errorf("ConfigStatus = %q, want %q", status, model.ConfigStatusAbsent)
	}
}

func TestDefaultTargetRoot(t *testing.T) {
	got := DefaultTargetRoot("/sims/run1", "https://github.com/CESR-lab/ucla-roms.git")
	want := "/sims/run1/externals/ucla-roms.git"
	if got != want {
		t.Errorf("DefaultTargetRoot = %q, want %q", got, want)
	}
}
