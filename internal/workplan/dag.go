// Package workplan validates a model.Workplan's step graph and computes
// its canonical digest: acyclicity, unique step names, and dependency
// names resolving to sibling steps.
package workplan

import (
	"fmt"
	"sort"

	"github.com/me/gowe/pkg/model"
)

// DAGResult holds the outcome of DAG analysis over a Workplan's steps.
type DAGResult struct {
	// Deps maps each step name to the step names it depends on.
	Deps map[string][]string
	// Order is a topological sort of step names (execution order).
	Order []string
}

// BuildDAG validates wp.Steps and returns their dependency graph and a
// topological order, ported from the teacher's Kahn's-algorithm
// BuildDAG, replacing CWL's "stepID/portName" source-string parsing
// with Workplan's direct depends_on step-name lists.
func BuildDAG(wp *model.Workplan) (*DAGResult, error) {
	names := make(map[string]bool, len(wp.Steps))
	for _, step := range wp.Steps {
		if names[step.Name] {
			return nil, &model.ValidationError{Path: "$.steps", Message: fmt.Sprintf("duplicate step name %q", step.Name)}
		}
		names[step.Name] = true
	}

	forward := make(map[string][]string, len(wp.Steps))
	deps := make(map[string][]string, len(wp.Steps))
	inDegree := make(map[string]int, len(wp.Steps))
	for _, step := range wp.Steps {
		inDegree[step.Name] = 0
	}

	for _, step := range wp.Steps {
		seen := make(map[string]bool)
		for _, dep := range step.DependsOn {
			if !names[dep] {
				return nil, &model.ValidationError{Path: "$.steps", Message: fmt.Sprintf("step %q depends on unknown step %q", step.Name, dep)}
			}
			if dep == step.Name {
				return nil, &model.ValidationError{Path: "$.steps", Message: fmt.Sprintf("step %q depends on itself", step.Name)}
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			forward[dep] = append(forward[dep], step.Name)
			deps[step.Name] = append(deps[step.Name], dep)
			inDegree[step.Name]++
		}
	}
	for name := range deps {
		sort.Strings(deps[name])
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		successors := forward[node]
		sort.Strings(successors)
		for _, succ := range successors {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		sort.Strings(queue)
	}

	if len(order) != len(names) {
		var cycleNodes []string
		for name, deg := range inDegree {
			if deg > 0 {
				cycleNodes = append(cycleNodes, name)
			}
		}
		sort.Strings(cycleNodes)
		return nil, &model.ValidationError{Path: "$.steps", Message: fmt.Sprintf("cycle involving steps: %v", cycleNodes)}
	}

	return &DAGResult{Deps: deps, Order: order}, nil
}

// Frontier returns the names of every step in order whose dependencies
// (per result.Deps) are all present in completed.
func (result *DAGResult) Frontier(completed map[string]bool) []string {
	var ready []string
	for _, name := range result.Order {
		if completed[name] {
			continue
		}
		allDone := true
		for _, dep := range result.Deps[name] {
			if !completed[dep] {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, name)
		}
	}
	return ready
}
