package infra

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator validates JSON documents against one fixed schema,
// compiling it once and reusing the compiled form across calls. This
// package ships schemas for PackageIndex and DataIndex responses only;
// the index clients' Refresh methods do not call a validator.
type SchemaValidator struct {
	mu     sync.RWMutex
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles schemaJSON (a JSON Schema document) and
// returns a validator, or an error if the schema itself is invalid.
func NewSchemaValidator(name string, schemaJSON []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("infra: schema %s is not valid JSON: %w", name, err)
	}
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("infra: register schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("infra: compile schema %s: %w", name, err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate checks raw JSON bytes against the compiled schema.
func (v *SchemaValidator) Validate(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("infra: invalid JSON: %w", err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("infra: schema validation failed: %w", err)
	}
	return nil
}

// PackageIndexSchema is the fixed schema for the `GET <api>/graphql`
// package index response shape.
const PackageIndexSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {
      "type": "object",
      "properties": {
        "signature": {"type": "string"},
        "capabilities": {"type": "array", "items": {"type": "string"}},
        "image_digest": {"type": "string"},
        "arg_names": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["signature"]
    }
  }
}`

// DataIndexSchema is the fixed schema for the `GET <api>/data/info`
// data index response shape.
const DataIndexSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "access": {
        "type": "object",
        "additionalProperties": {
          "type": "object",
          "properties": {
            "how": {"type": "string"},
            "path": {"type": "string"}
          },
          "required": ["how"]
        }
      }
    },
    "required": ["access"]
  }
}`
