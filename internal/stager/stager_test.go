package stager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/gowe/internal/retriever"
	"github.com/me/gowe/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStageFile_LocalCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "grid.nc")
	if err := os.WriteFile(src, []byte("grid data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(retriever.New(nil, testLogger()), testLogger())
	res := &model.Resource{Location: src}
	dest := filepath.Join(dir, "staged", "grid.nc")

	if err := s.StageFile(context.Background(), res, dest, false); err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if res.WorkingPath != dest {
		t.Errorf("WorkingPath = %q, want %q", res.WorkingPath, dest)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "grid data" {
		t.Errorf("content = %q", got)
	}
}

func TestStageFile_SkipsWhenHashMatches(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "grid.nc")
	content := []byte("grid data")
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	s := New(retriever.New(nil, testLogger()), testLogger())
	res := &model.Resource{Location: "https://example.invalid/should-not-be-fetched.nc", FileHash: hash}

	if err := s.StageFile(context.Background(), res, dest, false); err != nil {
		t.Fatalf("StageFile: %v", err)
	}
}
