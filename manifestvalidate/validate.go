// Package manifestvalidate validates InstallAgent's inputs against an
// AgentManifest's declared InputsSchema before onboarding runs.
package manifestvalidate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

// Inputs compiles schema (a JSON Schema document as a Go map, the shape
// AgentManifest.InputsSchema carries) and validates inputs against it. A
// nil or empty schema always validates — not every manifest declares
// one.
func Inputs(schema, inputs map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile inputs schema: %w", err)
	}

	payload, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode inputs: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", errInvalid, err)
	}
	return nil
}

var errInvalid = fmt.Errorf("inputs do not satisfy schema")

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := string(raw)

	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("manifest.inputs_schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
