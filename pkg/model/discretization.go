package model

import "fmt"

// Discretization fixes the domain decomposition and time step that a
// ROMS executable is compiled for. A Simulation may only run against a
// build compiled for exactly this rank count.
type Discretization struct {
	NProcsX  int     `json:"n_procs_x" yaml:"n_procs_x"`
	NProcsY  int     `json:"n_procs_y" yaml:"n_procs_y"`
	TimeStep float64 `json:"time_step" yaml:"time_step"`
}

// NRanks returns the total MPI rank count implied by the decomposition.
func (d Discretization) NRanks() int {
	return d.NProcsX * d.NProcsY
}

// Fingerprint returns a stable string identifying this discretization,
// used to detect whether a prior compiled build is stale.
func (d Discretization) Fingerprint() string {
	return fmt.Sprintf("%dx%d@%g", d.NProcsX, d.NProcsY, d.TimeStep)
}
