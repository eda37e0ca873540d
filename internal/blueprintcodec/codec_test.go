package blueprintcodec

import (
	"strings"
	"testing"

	"github.com/me/gowe/pkg/model"
)

const legacyBlueprint = `
registry_attrs:
  name: roms_marbl_sample
  valid_date_range:
    start_date: "2012-01-01"
    end_date: "2012-12-31"
components:
  - component_type: MARBL
    base_model:
      source_repo: https://github.com/marbl-ecosys/MARBL.git
      checkout_target: marbl0.45.0
  - component_type: ROMS
    base_model:
      source_repo: https://github.com/CESR-lab/ucla-roms.git
      checkout_target: main
    discretization:
      n_procs_x: 2
      n_procs_y: 3
      time_step: 60
    namelists:
      source:
        location: <additional_code_location>
        subdir: namelists
      files: ["roms.in"]
    model_grid:
      location: <input_datasets_location>/grid.nc
    initial_conditions:
      location: <input_datasets_location>/initial.nc
    tidal_forcing:
      location: <input_datasets_location>/tides.nc
    boundary_forcing:
      - location: <input_datasets_location>/bry_2012.nc
    surface_forcing:
      - location: <input_datasets_location>/surface_2012.nc
    river_forcing:
      - location: <input_datasets_location>/rivers.nc
`

func TestParse_LegacySchema(t *testing.T) {
	bp, err := New().Parse([]byte(legacyBlueprint), "/data/roms-case")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !bp.Legacy {
		t.Error("Legacy flag not set for components/namelists document")
	}
	if bp.Codebases.MARBL.SourceRepo == "" {
		t.Error("MARBL codebase not decoded")
	}
	if bp.Discretization.NProcsX != 2 {
		t.Errorf("NProcsX = %d, want 2", bp.Discretization.NProcsX)
	}
	if len(bp.Datasets) != 6 {
		t.Fatalf("got %d datasets, want 6", len(bp.Datasets))
	}
	if bp.RuntimeCode.Source.Location != "/data/roms-case" {
		t.Errorf("placeholder not substituted: %q", bp.RuntimeCode.Source.Location)
	}
	for _, ds := range bp.Datasets {
		if strings.Contains(ds.Resource.Location, "<input_datasets_location>") {
			t.Errorf("dataset %v location still has placeholder", ds)
		}
	}
}

const modernBlueprint = `
registry_attrs:
  name: roms_marbl_sample
  valid_date_range:
    start_date: "2012-01-01"
    end_date: "2012-12-31"
ROMSSimulation:
  codebases:
    roms:
      source_repo: https://github.com/CESR-lab/ucla-roms.git
      checkout_target: main
    marbl:
      source_repo: https://github.com/marbl-ecosys/MARBL.git
      checkout_target: marbl0.45.0
  discretization:
    n_procs_x: 2
    n_procs_y: 3
    time_step: 60
  runtime_code:
    source:
      location: /data/roms-case
      subdir: namelists
    files: ["roms.in"]
  model_grid:
    location: /data/roms-case/grid.nc
  initial_conditions:
    location: /data/roms-case/initial.nc
  tidal_forcing:
    location: /data/roms-case/tides.nc
  boundary_forcing:
    - location: /data/roms-case/bry_2012.nc
  surface_forcing:
    - location: /data/roms-case/surface_2012.nc
  river_forcing:
    - location: /data/roms-case/rivers.nc
`

func TestParse_ModernSchema(t *testing.T) {
	bp, err := New().Parse([]byte(modernBlueprint), "/data/roms-case")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bp.Legacy {
		t.Error("Legacy flag set for ROMSSimulation document")
	}
	if len(bp.Datasets) != 6 {
		t.Fatalf("got %d datasets, want 6", len(bp.Datasets))
	}
}

func TestParse_UnknownField_Rejected(t *testing.T) {
	bad := strings.Replace(modernBlueprint, "registry_attrs:", "bogus_field: 1\nregistry_attrs:", 1)
	if _, err := New().Parse([]byte(bad), "/data/roms-case"); err == nil {
		t.Error("expected validation error for unknown top-level field")
	}
}

func TestRoundTrip_RenderThenParse(t *testing.T) {
	c := New()
	bp, err := c.Parse([]byte(modernBlueprint), "/data/roms-case")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rendered, err := c.Render(bp)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(string(rendered), "components:") {
		t.Error("Render emitted legacy components key")
	}

	reparsed, err := c.Parse(rendered, "/data/roms-case")
	if err != nil {
		t.Fatalf("re-Parse rendered output: %v", err)
	}
	if reparsed.Name != bp.Name || len(reparsed.Datasets) != len(bp.Datasets) {
		t.Errorf("round trip mismatch: got %+v, want %+v", reparsed, bp)
	}
}

func TestRoundTrip_LegacyRendersModernName(t *testing.T) {
	c := New()
	bp, err := c.Parse([]byte(legacyBlueprint), "/data/roms-case")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rendered, err := c.Render(bp)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(rendered), "runtime_code:") {
		t.Error("legacy-sourced blueprint must render the modern runtime_code key")
	}
}

func TestParse_DatasetVariantInferredFromExtension(t *testing.T) {
	yamlDataset := strings.Replace(modernBlueprint, "location: /data/roms-case/grid.nc", "location: /data/roms-case/grid_recipe.yaml", 1)
	bp, err := New().Parse([]byte(yamlDataset), "/data/roms-case")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var grid []model.InputDataset
	for _, ds := range bp.Datasets {
		if ds.Role == model.RoleGrid {
			grid = append(grid, ds)
		}
	}
	if len(grid) != 1 {
		t.Fatalf("got %d grid datasets, want 1", len(grid))
	}
	if grid[0].Variant != model.DatasetVariantYAMLRecipe {
		t.Errorf("Variant = %q, want yaml-recipe", grid[0].Variant)
	}
}
