package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/gowe/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFetchFile_HashMatches(t *testing.T) {
	content := []byte("forcing data")
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	r := New(nil, testLogger())
	dest := filepath.Join(t.TempDir(), "forcing.nc")

	if err := r.FetchFile(context.Background(), srv.URL, dest, hash); err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content = %q, want %q", got, content)
	}
}

func TestFetchFile_HashMismatchLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("forcing data"))
	}))
	defer srv.Close()

	r := New(nil, testLogger())
	r.maxAttempts = 1
	dest := filepath.Join(t.TempDir(), "forcing.nc")

	err := r.FetchFile(context.Background(), srv.URL, dest, "0000000000000000000000000000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("expected hash mismatch error")
	}
	if _, ok := err.(*model.IntegrityError); !ok {
		t.Fatalf("expected *model.IntegrityError, got %T: %v", err, err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("expected no file left at dest after hash mismatch")
	}
}

func TestFetchFile_ServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New(nil, testLogger())
	r.maxAttempts = 1
	dest := filepath.Join(t.TempDir(), "forcing.nc")

	err := r.FetchFile(context.Background(), srv.URL, dest, "")
	if _, ok := err.(*model.NetworkError); !ok {
		t.Fatalf("expected *model.NetworkError, got %T: %v", err, err)
	}
}
