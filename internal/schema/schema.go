// Package schema builds the structural schemas used for tool arguments and
// final answers, and validates JSON values against them.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrMismatch is wrapped by every validation failure.
var ErrMismatch = errors.New("value does not match schema")

// Object returns a closed object schema: properties outside props are
// rejected.
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: False(),
	}
}

func String(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func Integer(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func Array(items *jsonschema.Schema, description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items, Description: description}
}

// False is the schema that matches nothing.
func False() *jsonschema.Schema {
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}

// FromAny converts a schema held as a generic value (for example one
// decoded from a remote tool catalog) into a typed schema.
func FromAny(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	if s, ok := v.(*jsonschema.Schema); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}

// Validator checks JSON documents against one resolved schema. It is safe
// for concurrent use.
type Validator struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewValidator resolves s. A nil schema accepts any JSON object.
func NewValidator(s *jsonschema.Schema) (*Validator, error) {
	if s == nil {
		s = &jsonschema.Schema{Type: "object"}
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return &Validator{schema: s, resolved: resolved}, nil
}

// Schema returns the schema the validator was built from.
func (v *Validator) Schema() *jsonschema.Schema {
	return v.schema
}

// Validate decodes raw and checks it against the schema. Empty input is
// treated as an empty object.
func (v *Validator) Validate(raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrMismatch, err)
	}
	if err := v.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	return nil
}
