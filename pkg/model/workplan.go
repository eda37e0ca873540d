package model

// WorkplanState is the declared maturity of a Workplan document.
type WorkplanState string

const (
	WorkplanStateDraft     WorkplanState = "draft"
	WorkplanStateValidated WorkplanState = "validated"
)

// ComputeEnvironment holds a Workplan's optional account/queue/walltime
// section. It is decoded and counted in the workplan digest; the
// orchestrator and runner do not read it, and a Step cannot override it.
type ComputeEnvironment struct {
	Account       string `json:"account,omitempty" yaml:"account,omitempty"`
	Queue         string `json:"queue,omitempty" yaml:"queue,omitempty"`
	MaxWalltime   string `json:"max_walltime,omitempty" yaml:"max_walltime,omitempty"`
	NodesOverride int    `json:"nodes_override,omitempty" yaml:"nodes_override,omitempty"`
}

// Workplan is an ordered, dependency-annotated list of Steps, each
// referencing a Blueprint. The step graph must be a DAG; dependency
// names must resolve to sibling steps; step names must be unique.
type Workplan struct {
	Name               string              `json:"name" yaml:"name"`
	Description        string              `json:"description,omitempty" yaml:"description,omitempty"`
	State              WorkplanState       `json:"state" yaml:"state"`
	ComputeEnvironment *ComputeEnvironment `json:"compute_environment,omitempty" yaml:"compute_environment,omitempty"`
	RuntimeVars        map[string]string   `json:"runtime_vars,omitempty" yaml:"runtime_vars,omitempty"`
	Steps              []Step              `json:"steps" yaml:"steps"`
}

// Step is a single node in a Workplan's dependency graph. Only
// blueprint_overrides is decoded, into Overrides (which also carries a
// Discretization override); compute_overrides and workflow_overrides
// keys in a Workplan document are not read.
type Step struct {
	Name        string              `json:"name" yaml:"name"`
	Application string              `json:"application" yaml:"application"`
	Blueprint   string              `json:"blueprint" yaml:"blueprint"` // path or URL
	DependsOn   []string            `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Overrides   *BlueprintOverrides `json:"blueprint_overrides,omitempty" yaml:"blueprint_overrides,omitempty"`
}
