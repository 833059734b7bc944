// Package validate checks configuration documents against their JSON
// schemas.
package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config_schema.json
var configSchema []byte

// ValidateAgainstSchema compiles the schema under the given name and
// validates the JSON document against it. A non-empty ref selects a
// sub-schema, e.g. "#/definitions/logging".
func ValidateAgainstSchema(name string, schema, data []byte, ref string) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("loading schema %s: %w", name, err)
	}
	url := name
	if ref != "" {
		url = name + ref
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compiling schema %s: %w", url, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// ValidateConfigJSON validates a global configuration document.
func ValidateConfigJSON(data []byte) error {
	return ValidateAgainstSchema("config.schema.json", configSchema, data, "")
}
