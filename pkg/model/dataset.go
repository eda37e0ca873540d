package model

// DatasetRole names the forcing/boundary role an InputDataset fills
// within a Simulation.
type DatasetRole string

const (
	RoleGrid               DatasetRole = "grid"
	RoleInitialConditions  DatasetRole = "initial_conditions"
	RoleTidalForcing       DatasetRole = "tidal_forcing"
	RoleBoundaryForcing    DatasetRole = "boundary_forcing"
	RoleSurfaceForcing     DatasetRole = "surface_forcing"
	RoleRiverForcing       DatasetRole = "river_forcing"
	RoleForcingCorrections DatasetRole = "forcing_corrections"
)

// DatasetVariant is a closed sum distinguishing a dataset that is
// already a netCDF file from one that must be generated from a YAML
// recipe via an external grid/forcing generator.
type DatasetVariant string

const (
	DatasetVariantNetCDFFile DatasetVariant = "netcdf-file"
	DatasetVariantYAMLRecipe DatasetVariant = "yaml-recipe"
)

// InputDataset describes one forcing/boundary/grid input to a
// Simulation, in either its already-materialized netCDF form or as a
// recipe that must be built before use.
type InputDataset struct {
	Role      DatasetRole    `json:"role" yaml:"role"`
	Variant   DatasetVariant `json:"variant" yaml:"variant"`
	Resource  Resource       `json:"resource" yaml:"resource"`
	DateRange DateRange      `json:"date_range" yaml:"date_range"`

	// RecipePath is set when Variant is DatasetVariantYAMLRecipe; it
	// points at the YAML recipe consumed by the external generator.
	RecipePath string `json:"recipe_path,omitempty" yaml:"recipe_path,omitempty"`

	// OutputPaths holds the netCDF files produced by Materialize, or the
	// single pre-existing file for a netcdf-file dataset.
	OutputPaths []string `json:"output_paths,omitempty" yaml:"output_paths,omitempty"`
}

// IsMaterialized reports whether this dataset has netCDF output ready
// for a simulation run.
func (d *InputDataset) IsMaterialized() bool {
	return len(d.OutputPaths) > 0
}
