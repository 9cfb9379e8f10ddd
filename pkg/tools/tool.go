package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Tool is a named capability the model can invoke through the ReAct protocol.
//
// Execute returns human-readable text. Returning an error (or panicking) is
// caught by the caller and converted into an observation; tools may also
// return a string starting with "Error:" to signal a recoverable domain
// failure without raising.
type Tool interface {
	Name() string
	Description() string
	// Parameters describes the expected structured input. It may be nil.
	Parameters() *jsonschema.Schema
	Execute(ctx context.Context, in Input) (string, error)
}

// Definition is the serializable description of a tool, used for catalog
// listings.
type Definition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Describe converts a tool into its Definition.
func Describe(t Tool) (Definition, error) {
	def := Definition{
		Name:        t.Name(),
		Description: t.Description(),
	}
	schema := t.Parameters()
	if schema == nil {
		return def, nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return def, err
	}
	if err := json.Unmarshal(b, &def.Parameters); err != nil {
		return def, err
	}
	return def, nil
}

// SchemaFor reflects an inline JSON schema for the type T. Structs are
// expanded in place; scalars and slices get their plain type schema.
func SchemaFor[T any]() *jsonschema.Schema {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return &jsonschema.Schema{Type: "object"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r := &jsonschema.Reflector{
		DoNotReference: true,
		// only a struct has a definition to expand
		ExpandedStruct: t.Kind() == reflect.Struct,
	}
	schema := r.ReflectFromType(t)
	// gojsonschema only knows drafts up to 7, leave the meta-schema implicit.
	schema.Version = ""
	return schema
}
