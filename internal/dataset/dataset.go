// Package dataset implements materialization of C-Star Input Datasets:
// netCDF files are staged as-is, YAML recipes are handed to an external
// grid/forcing generator.
package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/gowe/pkg/model"
)

// Generator is the external grid/forcing generator ("roms-tools" in the
// original implementation) that turns a YAML recipe into one or more
// netCDF files. C-Star treats it as a black box: any failure becomes a
// DatasetError, never inspected further.
type Generator interface {
	Generate(ctx context.Context, recipePath, outDir string) ([]string, error)
}

// Materializer resolves InputDatasets to on-disk netCDF files.
type Materializer struct {
	generator Generator
	logger    *slog.Logger
}

// New creates a Materializer backed by the given Generator.
func New(g Generator, logger *slog.Logger) *Materializer {
	return &Materializer{generator: g, logger: logger.With("component", "dataset")}
}

// Materialize resolves ds to OutputPaths. A netcdf-file dataset is a
// no-op once already staged; a yaml-recipe dataset is generated into
// outDir.
func (m *Materializer) Materialize(ctx context.Context, ds *model.InputDataset, outDir string) error {
	switch ds.Variant {
	case model.DatasetVariantNetCDFFile:
		if ds.Resource.WorkingPath == "" {
			return fmt.Errorf("dataset: %s has not been staged", ds.Role)
		}
		ds.OutputPaths = []string{ds.Resource.WorkingPath}
		return nil
	case model.DatasetVariantYAMLRecipe:
		paths, err := m.generator.Generate(ctx, ds.RecipePath, outDir)
		if err != nil {
			return &model.DatasetError{SourceYAML: ds.RecipePath, Requested: string(ds.Role), Err: err}
		}
		ds.OutputPaths = paths
		return nil
	default:
		return fmt.Errorf("dataset: unknown variant %q", ds.Variant)
	}
}

// RequireCoverage validates that want lies within the union of the date
// ranges of the given datasets for a single role.
func RequireCoverage(role model.DatasetRole, want model.DateRange, datasets []model.InputDataset) error {
	reach, covered := want.Start, false
	for grown := true; grown; {
		grown = false
		for _, ds := range datasets {
			if ds.Role != role {
				continue
			}
			r := ds.DateRange
			if !r.Start.After(reach) && !r.End.Before(reach) && (!covered || r.End.After(reach)) {
				reach, covered, grown = r.End, true, true
			}
		}
	}
	if covered && !reach.Before(want.End) {
		return nil
	}
	return &model.ValidationError{
		Path:    fmt.Sprintf("$.datasets.%s", role),
		Message: fmt.Sprintf("no dataset for role %q covers the requested date range", role),
	}
}
