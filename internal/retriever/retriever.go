// Package retriever implements C-Star's Source Retriever: HTTPS file
// fetch with hash verification, git repository fetch with ref resolution,
// and local working-copy verification.
package retriever

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/me/gowe/pkg/model"
)

// Retriever fetches and verifies Resources over HTTPS and git.
type Retriever struct {
	client *http.Client
	cache  *Cache
	logger *slog.Logger

	maxAttempts int
	backoff     []time.Duration
}

// New creates a Retriever. cache may be nil to disable clone reuse.
func New(cache *Cache, logger *slog.Logger) *Retriever {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Retriever{
		client: &http.Client{
			Transport: transport,
			Timeout:   15 * time.Minute,
		},
		cache:       cache,
		logger:      logger.With("component", "retriever"),
		maxAttempts: 3,
		backoff:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// FetchFile downloads url into dest (atomically, via a temp file plus
// rename) and, if expectedHash is non-empty, verifies the SHA-256 hash
// of the downloaded content matches. A hash mismatch gets one fresh
// download; if that also mismatches, FetchFile removes dest and returns
// an IntegrityError.
func (r *Retriever) FetchFile(ctx context.Context, url, dest, expectedHash string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("retriever: mkdir: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff[attempt-2]):
			}
		}

		hash, err := r.download(ctx, url, dest)
		if err == nil {
			if expectedHash != "" && !strings.EqualFold(hash, expectedHash) {
				os.Remove(dest)
				if hash, err = r.download(ctx, url, dest); err == nil && strings.EqualFold(hash, expectedHash) {
					return nil
				}
				os.Remove(dest)
				return &model.IntegrityError{Resource: url, Expected: expectedHash, Actual: hash, Message: "hash mismatch"}
			}
			return nil
		}
		lastErr = err
		r.logger.Warn("fetch failed, retrying", "url", url, "attempt", attempt, "error", err)
	}
	return &model.NetworkError{URL: url, Attempt: r.maxAttempts, Err: lastErr}
}

func (r *Retriever) download(ctx context.Context, url, dest string) (hash string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	_, err = io.Copy(out, io.TeeReader(resp.Body, h))
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var hexHashRE = regexp.MustCompile(`^[0-9a-fA-F]{7}$|^[0-9a-fA-F]{40}$`)

// resolveRef runs `git ls-remote` to resolve a branch/tag name to a
// commit hash, falling back to the raw target if it already looks like
// a hash and ls-remote found nothing, and erroring otherwise.
func resolveRef(ctx context.Context, repoURL, target string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "ls-remote", repoURL, target).Output()
	if err == nil {
		fields := strings.Fields(string(out))
		if len(fields) > 0 {
			return fields[0], nil
		}
	}
	if hexHashRE.MatchString(target) {
		return target, nil
	}
	return "", fmt.Errorf("retriever: could not resolve checkout target %q for %s", target, repoURL)
}

// FetchRepo clones repoURL at ref into dest. A bare commit hash gets a
// full clone (a shallow clone cannot reach an arbitrary historical
// commit) followed by a checkout; a branch or tag is resolved to a
// commit for the returned/cached hash but cloned directly with
// --depth 1 at that ref, since the ref's tip is always the shallow
// clone's HEAD.
func (r *Retriever) FetchRepo(ctx context.Context, repoURL, ref, dest string) (string, error) {
	if r.cache != nil {
		if path, ok := r.cache.Lookup(repoURL, ref); ok {
			if status, _ := r.VerifyLocal(ctx, path, repoURL, ref); status == StatusMatches {
				return r.resolvedHashOf(ctx, path), nil
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("retriever: mkdir: %w", err)
	}
	os.RemoveAll(dest)

	if hexHashRE.MatchString(ref) {
		clone := exec.CommandContext(ctx, "git", "clone", "--quiet", repoURL, dest)
		if err := clone.Run(); err != nil {
			return "", &model.NetworkError{URL: repoURL, Attempt: 1, Err: err}
		}
		checkout := exec.CommandContext(ctx, "git", "-C", dest, "checkout", "--quiet", ref)
		if err := checkout.Run(); err != nil {
			return "", fmt.Errorf("retriever: checkout %s: %w", ref, err)
		}
		if r.cache != nil {
			r.cache.Record(repoURL, ref, dest)
		}
		return ref, nil
	}

	resolved, err := resolveRef(ctx, repoURL, ref)
	if err != nil {
		return "", &model.NetworkError{URL: repoURL, Attempt: 1, Err: err}
	}

	clone := exec.CommandContext(ctx, "git", "clone", "--quiet", "--depth", "1", "--branch", ref, repoURL, dest)
	if err := clone.Run(); err != nil {
		return "", &model.NetworkError{URL: repoURL, Attempt: 1, Err: err}
	}

	if r.cache != nil {
		r.cache.Record(repoURL, ref, dest)
	}
	return resolved, nil
}

func (r *Retriever) resolvedHashOf(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// VerifyStatus classifies a local working copy against a declared remote/ref.
type VerifyStatus string

const (
	StatusMatches     VerifyStatus = "matches"
	StatusWrongRemote VerifyStatus = "wrong-remote"
	StatusWrongRef    VerifyStatus = "wrong-ref"
	StatusNotARepo    VerifyStatus = "not-a-repo"
)

// VerifyLocal checks that path is a git working copy whose origin remote
// and checked-out commit match repoURL and ref.
func (r *Retriever) VerifyLocal(ctx context.Context, path, repoURL, ref string) (VerifyStatus, error) {
	remoteOut, err := exec.CommandContext(ctx, "git", "-C", path, "remote", "get-url", "origin").Output()
	if err != nil {
		return StatusNotARepo, nil
	}
	if strings.TrimSpace(string(remoteOut)) != repoURL {
		return StatusWrongRemote, nil
	}

	resolved, err := resolveRef(ctx, repoURL, ref)
	if err != nil {
		return StatusNotARepo, err
	}
	head := r.resolvedHashOf(ctx, path)
	if head == "" {
		return StatusNotARepo, nil
	}
	if !strings.HasPrefix(resolved, head) && !strings.HasPrefix(head, resolved) {
		return StatusWrongRef, nil
	}
	return StatusMatches, nil
}
