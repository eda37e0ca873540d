package workplan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/me/gowe/pkg/model"
)

// Digest computes the canonical workplan_digest for wp: marshal the
// typed struct (not the raw parsed map) back to YAML, which fixes key
// order to the struct's field order regardless of how the source
// document was written, then SHA-256 the bytes.
func Digest(wp *model.Workplan) (string, error) {
	canonical, err := yaml.Marshal(wp)
	if err != nil {
		return "", fmt.Errorf("workplan: canonicalize for digest: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
