package model

import "time"

// Codebases names the independent git-sourced model trees a ROMS+MARBL
// Simulation installs: the ROMS source itself, its runtime- and
// compile-time support code, and MARBL.
type Codebases struct {
	ROMS         ExternalCodebase `json:"roms"`
	RunTime      ExternalCodebase `json:"run_time"`
	CompileTime  ExternalCodebase `json:"compile_time"`
	MARBL        ExternalCodebase `json:"marbl"`
}

// Simulation is the root aggregate: a named, dated model configuration
// tying together its codebases, additional code, input datasets,
// discretization, and (once submitted) its execution handler.
type Simulation struct {
	Name           string       `json:"name"`
	Directory      string       `json:"directory"`
	ValidDateRange DateRange    `json:"valid_date_range"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`

	Codebases       Codebases        `json:"codebases"`
	RuntimeCode     AdditionalCode   `json:"runtime_code"`
	CompileTimeCode AdditionalCode   `json:"compile_time_code"`
	Datasets        []InputDataset   `json:"datasets"`
	Discretization  Discretization   `json:"discretization"`

	State SimState `json:"state"`

	// HandlerKind and HandlerRef describe the currently attached
	// execution handler, if any; the handler itself is not embedded in
	// the persisted Simulation, only enough to re-attach to it.
	HandlerKind HandlerKind `json:"handler_kind,omitempty"`
	HandlerRef  string      `json:"handler_ref,omitempty"` // external job ID or PID
}

// ValidateDateRange checks that StartDate <= EndDate and both lie inside
// ValidDateRange.
func (s *Simulation) ValidateDateRange() error {
	if s.StartDate.After(s.EndDate) {
		return &ValidationError{Path: "$.start_date", Message: "start_date must not be after end_date"}
	}
	if !s.ValidDateRange.Contains(DateRange{Start: s.StartDate, End: s.EndDate}) {
		return &ValidationError{Path: "$.start_date", Message: "requested date range falls outside valid_date_range"}
	}
	return nil
}

// DatasetsForRole returns every InputDataset declared for role, in
// declaration order. A role may carry more than one dataset (e.g.
// boundary forcing split across several files); RequireCoverage checks
// that the union of their ranges covers a requested window.
func (s *Simulation) DatasetsForRole(role DatasetRole) []InputDataset {
	var out []InputDataset
	for _, ds := range s.Datasets {
		if ds.Role == role {
			out = append(out, ds)
		}
	}
	return out
}

// RequiredRoles lists six standard dataset roles of a Simulation. Setup
// does not consult it: it checks date coverage only for the roles a
// Simulation declares datasets for.
var RequiredRoles = []DatasetRole{
	RoleGrid,
	RoleInitialConditions,
	RoleTidalForcing,
	RoleBoundaryForcing,
	RoleSurfaceForcing,
	RoleRiverForcing,
}
