package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/manifest.schema.json
var manifestSchema []byte

//go:embed schema/config.schema.json
var configSchema []byte

const (
	manifestSchemaName = "manifest.schema.json"
	configSchemaName   = "config.schema.json"
)

// ValidateAgainstSchema validates data against the JSON schema registered
// under name. ref selects a sub-schema (e.g. "#/$defs/download"); empty
// validates against the root.
func ValidateAgainstSchema(name string, schema []byte, data []byte, ref string) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("loading schema %s: %w", name, err)
	}

	sch, err := compiler.Compile(name + ref)
	if err != nil {
		return fmt.Errorf("compiling schema %s: %w", name, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation against %s failed: %w", name, err)
	}
	return nil
}

// ValidateManifestJSON validates a driver version manifest document.
func ValidateManifestJSON(data []byte) error {
	return ValidateAgainstSchema(manifestSchemaName, manifestSchema, data, "")
}

// ValidateConfigJSON validates the global configuration after it has been
// converted from YAML to JSON.
func ValidateConfigJSON(data []byte) error {
	return ValidateAgainstSchema(configSchemaName, configSchema, data, "")
}
