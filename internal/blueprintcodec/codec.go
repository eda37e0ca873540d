package blueprintcodec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/gowe/pkg/model"
)

// Codec parses and renders Blueprint documents.
type Codec struct{}

// New creates a Codec. It carries no state; schemas are compiled once at
// package init.
func New() *Codec { return &Codec{} }

// Parse validates raw against both known schema variants and decodes
// whichever one matches into a model.Blueprint. baseDir resolves any
// <input_datasets_location>/<additional_code_location> placeholder in
// raw before either schema is tried.
func (c *Codec) Parse(raw []byte, baseDir string) (*model.Blueprint, error) {
	substituted := substitutePlaceholders(raw, baseDir)

	if doc, err := validateAny(modernSchema, substituted); err == nil {
		return c.decode(substituted, doc, false)
	}
	legacyDoc, legacyErr := validateAny(legacySchema, substituted)
	if legacyErr != nil {
		return nil, &model.ValidationError{
			Path:    "$",
			Message: fmt.Sprintf("blueprint matches neither schema variant: %v", legacyErr),
		}
	}
	return c.decode(substituted, legacyDoc, true)
}

// substitutePlaceholders resolves the two location placeholders against
// baseDir in a single pre-parse pass over the raw bytes, before any
// YAML structure is imposed.
func substitutePlaceholders(raw []byte, baseDir string) []byte {
	s := string(raw)
	s = strings.ReplaceAll(s, "<input_datasets_location>", baseDir)
	s = strings.ReplaceAll(s, "<additional_code_location>", baseDir)
	return []byte(s)
}

func (c *Codec) decode(raw []byte, _ map[string]any, legacy bool) (*model.Blueprint, error) {
	var doc wireDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &model.ValidationError{Path: "$", Message: fmt.Sprintf("decode blueprint: %v", err)}
	}

	bp := &model.Blueprint{
		Name:        doc.RegistryAttrs.Name,
		RuntimeVars: doc.RuntimeVars,
		Legacy:      legacy,
	}
	start, err := parseDate(doc.RegistryAttrs.ValidDateRange.StartDate)
	if err != nil {
		return nil, &model.ValidationError{Path: "$.registry_attrs.valid_date_range.start_date", Message: err.Error()}
	}
	end, err := parseDate(doc.RegistryAttrs.ValidDateRange.EndDate)
	if err != nil {
		return nil, &model.ValidationError{Path: "$.registry_attrs.valid_date_range.end_date", Message: err.Error()}
	}
	bp.ValidDateRange = model.DateRange{Start: start, End: end}

	if legacy {
		if err := decodeLegacyComponents(doc.Components, bp); err != nil {
			return nil, err
		}
	} else {
		decodeModernSimulation(doc.ROMSSimulation, bp)
	}
	return bp, nil
}

func decodeModernSimulation(sim *wireROMSSimulation, bp *model.Blueprint) {
	if sim == nil {
		return
	}
	bp.Codebases.ROMS = toModelBaseModel(sim.Codebases.ROMS, "roms", "ROMS_ROOT")
	if sim.Codebases.MARBL != nil {
		bp.Codebases.MARBL = toModelBaseModel(*sim.Codebases.MARBL, "marbl", "MARBL_ROOT")
	}
	bp.Discretization = toModelDiscretization(sim.Discretization)
	bp.RuntimeCode = toModelAdditionalCode(sim.RuntimeCode)
	bp.CompileTimeCode = toModelAdditionalCode(sim.CompileTimeCode)
	if bp.RuntimeCode.Source.Location != "" {
		bp.Codebases.RunTime = model.ExternalCodebase{Name: "run_time", SourceRepo: bp.RuntimeCode.Source.Location, CheckoutTarget: bp.RuntimeCode.Source.CheckoutTarget, RootEnvVar: "RUNTIME_CODE_ROOT"}
	}
	if bp.CompileTimeCode.Source.Location != "" {
		bp.Codebases.CompileTime = model.ExternalCodebase{Name: "compile_time", SourceRepo: bp.CompileTimeCode.Source.Location, CheckoutTarget: bp.CompileTimeCode.Source.CheckoutTarget, RootEnvVar: "COMPILETIME_CODE_ROOT"}
	}
	bp.Datasets = collectDatasets(sim.ModelGrid, sim.InitialConditions, sim.TidalForcing,
		sim.BoundaryForcing, sim.SurfaceForcing, sim.RiverForcing, sim.ForcingCorrections)
}

func decodeLegacyComponents(components []wireComponent, bp *model.Blueprint) error {
	for _, comp := range components {
		switch strings.ToUpper(comp.ComponentType) {
		case "ROMS":
			bp.Codebases.ROMS = toModelBaseModel(comp.BaseModel, "roms", "ROMS_ROOT")
			bp.Discretization = toModelDiscretization(comp.Discretization)
			bp.RuntimeCode = toModelAdditionalCode(comp.Namelists)
			bp.CompileTimeCode = toModelAdditionalCode(comp.AdditionalSourceCode)
			if bp.RuntimeCode.Source.Location != "" {
				bp.Codebases.RunTime = model.ExternalCodebase{Name: "run_time", SourceRepo: bp.RuntimeCode.Source.Location, CheckoutTarget: bp.RuntimeCode.Source.CheckoutTarget, RootEnvVar: "RUNTIME_CODE_ROOT"}
			}
			if bp.CompileTimeCode.Source.Location != "" {
				bp.Codebases.CompileTime = model.ExternalCodebase{Name: "compile_time", SourceRepo: bp.CompileTimeCode.Source.Location, CheckoutTarget: bp.CompileTimeCode.Source.CheckoutTarget, RootEnvVar: "COMPILETIME_CODE_ROOT"}
			}
			bp.Datasets = append(bp.Datasets, collectDatasets(comp.ModelGrid, comp.InitialConditions, comp.TidalForcing,
				comp.BoundaryForcing, comp.SurfaceForcing, comp.RiverForcing, comp.ForcingCorrections)...)
		case "MARBL":
			bp.Codebases.MARBL = toModelBaseModel(comp.BaseModel, "marbl", "MARBL_ROOT")
		default:
			return &model.ValidationError{Path: "$.components", Message: fmt.Sprintf("unrecognized component_type %q", comp.ComponentType)}
		}
	}
	return nil
}

// collectDatasets flattens the per-role dataset fields of a component or
// ROMSSimulation block into the flat slice model.Blueprint carries.
func collectDatasets(grid, ic, tidal *wireDataset, boundary, surface, river, corrections []wireDataset) []model.InputDataset {
	var out []model.InputDataset
	if grid != nil {
		out = append(out, toModelDataset(*grid, model.RoleGrid))
	}
	if ic != nil {
		out = append(out, toModelDataset(*ic, model.RoleInitialConditions))
	}
	if tidal != nil {
		out = append(out, toModelDataset(*tidal, model.RoleTidalForcing))
	}
	for _, w := range boundary {
		out = append(out, toModelDataset(w, model.RoleBoundaryForcing))
	}
	for _, w := range surface {
		out = append(out, toModelDataset(w, model.RoleSurfaceForcing))
	}
	for _, w := range river {
		out = append(out, toModelDataset(w, model.RoleRiverForcing))
	}
	for _, w := range corrections {
		out = append(out, toModelDataset(w, model.RoleForcingCorrections))
	}
	return out
}

// Render serializes bp to YAML, always in the modern ROMSSimulation
// schema regardless of bp.Legacy — export always emits the current
// schema name, per the accepted policy on the legacy/modern naming
// question.
func (c *Codec) Render(bp *model.Blueprint) ([]byte, error) {
	doc := wireDoc{
		RegistryAttrs: wireRegistryAttrs{
			Name: bp.Name,
			ValidDateRange: wireDateRange{
				StartDate: formatDate(bp.ValidDateRange.Start),
				EndDate:   formatDate(bp.ValidDateRange.End),
			},
		},
		RuntimeVars: bp.RuntimeVars,
		ROMSSimulation: &wireROMSSimulation{
			Codebases:       wireCodebases{ROMS: fromModelBaseModel(bp.Codebases.ROMS)},
			Discretization:  fromModelDiscretization(bp.Discretization),
			RuntimeCode:     fromModelAdditionalCode(bp.RuntimeCode),
			CompileTimeCode: fromModelAdditionalCode(bp.CompileTimeCode),
		},
	}
	if bp.Codebases.MARBL.SourceRepo != "" {
		marbl := fromModelBaseModel(bp.Codebases.MARBL)
		doc.ROMSSimulation.Codebases.MARBL = &marbl
	}

	for _, ds := range bp.Datasets {
		w := fromModelDataset(ds)
		switch ds.Role {
		case model.RoleGrid:
			doc.ROMSSimulation.ModelGrid = &w
		case model.RoleInitialConditions:
			doc.ROMSSimulation.InitialConditions = &w
		case model.RoleTidalForcing:
			doc.ROMSSimulation.TidalForcing = &w
		case model.RoleBoundaryForcing:
			doc.ROMSSimulation.BoundaryForcing = append(doc.ROMSSimulation.BoundaryForcing, w)
		case model.RoleSurfaceForcing:
			doc.ROMSSimulation.SurfaceForcing = append(doc.ROMSSimulation.SurfaceForcing, w)
		case model.RoleRiverForcing:
			doc.ROMSSimulation.RiverForcing = append(doc.ROMSSimulation.RiverForcing, w)
		case model.RoleForcingCorrections:
			doc.ROMSSimulation.ForcingCorrections = append(doc.ROMSSimulation.ForcingCorrections, w)
		}
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("render blueprint: %w", err)
	}
	return out, nil
}
