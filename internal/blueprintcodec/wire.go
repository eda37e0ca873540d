package blueprintcodec

import (
	"path/filepath"
	"strings"

	"github.com/me/gowe/pkg/model"
)

// wireRegistryAttrs mirrors registry_attrs in both schema variants.
type wireRegistryAttrs struct {
	Name           string        `yaml:"name"`
	ValidDateRange wireDateRange `yaml:"valid_date_range"`
}

type wireDateRange struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type wireBaseModel struct {
	SourceRepo     string `yaml:"source_repo"`
	CheckoutTarget string `yaml:"checkout_target"`
}

type wireDiscretization struct {
	NProcsX  int     `yaml:"n_procs_x"`
	NProcsY  int     `yaml:"n_procs_y"`
	TimeStep float64 `yaml:"time_step"`
}

type wireCodeSource struct {
	Location       string `yaml:"location"`
	CheckoutTarget string `yaml:"checkout_target,omitempty"`
	Subdir         string `yaml:"subdir,omitempty"`
}

type wireAdditionalCode struct {
	Source wireCodeSource `yaml:"source"`
	Files  []string       `yaml:"files"`
}

type wireDataset struct {
	Location       string `yaml:"location"`
	CheckoutTarget string `yaml:"checkout_target,omitempty"`
	Subdir         string `yaml:"subdir,omitempty"`
	FileHash       string `yaml:"file_hash,omitempty"`
	StartDate      string `yaml:"start_date,omitempty"`
	EndDate        string `yaml:"end_date,omitempty"`
}

// wireDoc is the common shape both schema variants decode into before
// component-specific fields are picked apart; yaml.v3 silently ignores
// keys absent from a variant's document.
type wireDoc struct {
	RegistryAttrs wireRegistryAttrs `yaml:"registry_attrs"`
	RuntimeVars   map[string]string `yaml:"runtime_vars,omitempty"`

	// Modern schema.
	ROMSSimulation *wireROMSSimulation `yaml:"ROMSSimulation,omitempty"`

	// Legacy schema.
	Components []wireComponent `yaml:"components,omitempty"`
}

type wireROMSSimulation struct {
	Codebases         wireCodebases        `yaml:"codebases"`
	Discretization    *wireDiscretization  `yaml:"discretization,omitempty"`
	RuntimeCode       *wireAdditionalCode  `yaml:"runtime_code,omitempty"`
	CompileTimeCode   *wireAdditionalCode  `yaml:"compile_time_code,omitempty"`
	ModelGrid         *wireDataset         `yaml:"model_grid,omitempty"`
	InitialConditions *wireDataset         `yaml:"initial_conditions,omitempty"`
	TidalForcing      *wireDataset         `yaml:"tidal_forcing,omitempty"`
	BoundaryForcing   []wireDataset        `yaml:"boundary_forcing,omitempty"`
	SurfaceForcing    []wireDataset        `yaml:"surface_forcing,omitempty"`
	RiverForcing      []wireDataset        `yaml:"river_forcing,omitempty"`
	ForcingCorrections []wireDataset       `yaml:"forcing_corrections,omitempty"`
}

type wireCodebases struct {
	ROMS  wireBaseModel  `yaml:"roms"`
	MARBL *wireBaseModel `yaml:"marbl,omitempty"`
}

// wireComponent is the legacy per-component record: a single object
// carrying a component_type discriminator plus every field the modern
// schema splits across ROMSSimulation's top level.
type wireComponent struct {
	ComponentType      string              `yaml:"component_type"`
	BaseModel          wireBaseModel       `yaml:"base_model"`
	Discretization     *wireDiscretization `yaml:"discretization,omitempty"`
	Namelists          *wireAdditionalCode `yaml:"namelists,omitempty"`
	AdditionalSourceCode *wireAdditionalCode `yaml:"additional_source_code,omitempty"`
	ModelGrid          *wireDataset        `yaml:"model_grid,omitempty"`
	InitialConditions  *wireDataset        `yaml:"initial_conditions,omitempty"`
	TidalForcing       *wireDataset        `yaml:"tidal_forcing,omitempty"`
	BoundaryForcing    []wireDataset       `yaml:"boundary_forcing,omitempty"`
	SurfaceForcing     []wireDataset       `yaml:"surface_forcing,omitempty"`
	RiverForcing       []wireDataset       `yaml:"river_forcing,omitempty"`
	ForcingCorrections []wireDataset       `yaml:"forcing_corrections,omitempty"`
}

// inferVariant guesses an InputDataset's variant from its location's file
// extension, since neither schema variant carries an explicit tag: a
// .yaml/.yml location is a recipe for the external dataset generator,
// anything else is assumed to be a netCDF file already in hand.
func inferVariant(location string) model.DatasetVariant {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return model.DatasetVariantYAMLRecipe
	default:
		return model.DatasetVariantNetCDFFile
	}
}

func toModelDataset(w wireDataset, role model.DatasetRole) model.InputDataset {
	ds := model.InputDataset{
		Role:    role,
		Variant: inferVariant(w.Location),
		Resource: model.Resource{
			Location:       w.Location,
			CheckoutTarget: w.CheckoutTarget,
			Subdir:         w.Subdir,
			FileHash:       w.FileHash,
		},
	}
	if ds.Variant == model.DatasetVariantYAMLRecipe {
		ds.RecipePath = w.Location
	}
	if w.StartDate != "" || w.EndDate != "" {
		start, _ := parseDate(w.StartDate)
		end, _ := parseDate(w.EndDate)
		ds.DateRange = model.DateRange{Start: start, End: end}
	}
	return ds
}

func fromModelDataset(ds model.InputDataset) wireDataset {
	w := wireDataset{
		Location:       ds.Resource.Location,
		CheckoutTarget: ds.Resource.CheckoutTarget,
		Subdir:         ds.Resource.Subdir,
		FileHash:       ds.Resource.FileHash,
	}
	if !ds.DateRange.Start.IsZero() {
		w.StartDate = formatDate(ds.DateRange.Start)
	}
	if !ds.DateRange.End.IsZero() {
		w.EndDate = formatDate(ds.DateRange.End)
	}
	return w
}

func toModelAdditionalCode(w *wireAdditionalCode) model.AdditionalCode {
	if w == nil {
		return model.AdditionalCode{}
	}
	return model.AdditionalCode{
		Files: w.Files,
		Source: model.Resource{
			Location:       w.Source.Location,
			CheckoutTarget: w.Source.CheckoutTarget,
			Subdir:         w.Source.Subdir,
		},
	}
}

func fromModelAdditionalCode(ac model.AdditionalCode) *wireAdditionalCode {
	if len(ac.Files) == 0 && ac.Source.Location == "" {
		return nil
	}
	return &wireAdditionalCode{
		Files: ac.Files,
		Source: wireCodeSource{
			Location:       ac.Source.Location,
			CheckoutTarget: ac.Source.CheckoutTarget,
			Subdir:         ac.Source.Subdir,
		},
	}
}

func toModelBaseModel(w wireBaseModel, name, rootEnvVar string) model.ExternalCodebase {
	return model.ExternalCodebase{
		Name:           name,
		SourceRepo:     w.SourceRepo,
		CheckoutTarget: w.CheckoutTarget,
		RootEnvVar:     rootEnvVar,
	}
}

func fromModelBaseModel(cb model.ExternalCodebase) wireBaseModel {
	return wireBaseModel{SourceRepo: cb.SourceRepo, CheckoutTarget: cb.CheckoutTarget}
}

func toModelDiscretization(w *wireDiscretization) model.Discretization {
	if w == nil {
		return model.Discretization{}
	}
	return model.Discretization{NProcsX: w.NProcsX, NProcsY: w.NProcsY, TimeStep: w.TimeStep}
}

func fromModelDiscretization(d model.Discretization) *wireDiscretization {
	if d.NProcsX == 0 && d.NProcsY == 0 {
		return nil
	}
	return &wireDiscretization{NProcsX: d.NProcsX, NProcsY: d.NProcsY, TimeStep: d.TimeStep}
}
