// Package eventschema validates event bodies structurally (JSON Schema) and
// checks an event's declared schema version against a supported range.
package eventschema

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// eventSchemaDoc is the fixed structural schema for an off-chain event body:
// the required fields spec.md §3 names, with plausible types. Event-specific
// "body" content is intentionally left opaque (additionalProperties-free
// structural checks only apply to the envelope).
const eventSchemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["v", "type", "author_pubkey", "created_at"],
  "properties": {
    "v": {"type": "integer", "minimum": 1},
    "type": {},
    "author_pubkey": {"type": "string", "minLength": 1},
    "created_at": {"type": "integer", "minimum": 0},
    "parents": {"type": "array", "items": {"type": "string"}},
    "body": {},
    "proofs": {},
    "sig": {"type": "string"}
  }
}`

const schemaResourceName = "event.json"

// Validator checks raw event JSON against the fixed Event schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the fixed event schema once at startup.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResourceName, bytes.NewReader([]byte(eventSchemaDoc))); err != nil {
		return nil, fmt.Errorf("eventschema: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaResourceName)
	if err != nil {
		return nil, fmt.Errorf("eventschema: compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateBytes structurally validates raw event JSON.
func (v *Validator) ValidateBytes(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("eventschema: parse event json: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("eventschema: structural validation failed: %w", err)
	}
	return nil
}
