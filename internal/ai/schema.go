package ai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FixedDocumentSchema is the JSON Schema enforced in fixed schema mode.
func FixedDocumentSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"document_type", "entities", "key_value_pairs", "confidence_score"},
		"properties": map[string]any{
			"document_type": map[string]any{"type": "string", "minLength": 1},
			"entities": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": []string{"object", "string"}},
			},
			"key_value_pairs":  map[string]any{"type": "object"},
			"confidence_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}

// SchemaValidator validates decoded documents against a compiled schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles schemaMap once for repeated use.
func NewSchemaValidator(schemaMap map[string]any) (*SchemaValidator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("document.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("document.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate checks doc against the schema.
func (v *SchemaValidator) Validate(doc map[string]any) error {
	// Round-trip so values carry the plain JSON types the validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := v.schema.Validate(generic); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}
