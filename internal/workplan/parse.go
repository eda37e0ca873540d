package workplan

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/me/gowe/pkg/model"
)

// Parse decodes a Workplan document and validates that its step graph
// forms a well-formed DAG (unique names, resolvable depends_on, no
// cycle), the same check BuildDAG performs, so a caller gets a single
// validation error for a malformed document instead of succeeding here
// and failing later at dispatch time.
func Parse(raw []byte) (*model.Workplan, error) {
	var wp model.Workplan
	if err := yaml.Unmarshal(raw, &wp); err != nil {
		return nil, &model.ValidationError{Path: "$", Message: fmt.Sprintf("decode workplan: %v", err)}
	}
	if wp.Name == "" {
		return nil, &model.ValidationError{Path: "$.name", Message: "name is required"}
	}
	if _, err := BuildDAG(&wp); err != nil {
		return nil, err
	}
	return &wp, nil
}
