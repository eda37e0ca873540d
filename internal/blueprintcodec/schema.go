// Package blueprintcodec parses and renders Blueprint documents: the
// YAML-serialized form of a Simulation, in either the modern
// ROMSSimulation/runtime_code schema or the legacy components/namelists
// schema it replaced.
package blueprintcodec

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/blueprint.schema.json schemas/blueprint_legacy.schema.json
var schemaFS embed.FS

var (
	modernSchema *jsonschema.Schema
	legacySchema *jsonschema.Schema
)

func init() {
	var err error
	modernSchema, err = compileEmbedded("schemas/blueprint.schema.json")
	if err != nil {
		panic(err)
	}
	legacySchema, err = compileEmbedded("schemas/blueprint_legacy.schema.json")
	if err != nil {
		panic(err)
	}
}

func compileEmbedded(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema %s: %w", name, err)
	}
	return jsonschema.CompileString(name, string(data))
}

// validateAny unmarshals raw YAML bytes into a generic document and runs
// it through a compiled JSON schema. yaml.v3 decodes mappings into
// map[string]interface{} directly, so no intermediate JSON round trip
// through interface{} keys is needed; one remains to normalize nested
// scalar types (e.g. YAML's distinct int/float kinds) to what
// jsonschema.Validate expects.
func validateAny(schema *jsonschema.Schema, raw []byte) (map[string]any, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	jsonBytes, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("marshal to json: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(jsonBytes, &asMap); err != nil {
		return nil, fmt.Errorf("document is not a mapping")
	}

	if err := schema.Validate(asMap); err != nil {
		return nil, err
	}
	return asMap, nil
}
