package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// FuncTool adapts a typed Go function into a Tool. The parameter schema is
// reflected from In, and structured input is validated against it before
// the function is called. Validation failures are reported as "Error: ..."
// results so the model can correct itself.
type FuncTool[In any] struct {
	name          string
	description   string
	schema        *jsonschema.Schema
	schemaJSON    []byte
	fn            func(ctx context.Context, in In) (string, error)
	optionalInput bool
}

var _ Tool = (*FuncTool[struct{}])(nil)

type FuncToolOption func(*funcToolConfig)

type funcToolConfig struct {
	optionalInput bool
}

// WithOptionalInput makes the tool call its function with the zero value of
// In when the input is missing or does not fit the schema, instead of
// reporting an error. For tools whose parameters are all optional.
func WithOptionalInput() FuncToolOption {
	return func(c *funcToolConfig) {
		c.optionalInput = true
	}
}

func NewFuncTool[In any](
	name, description string,
	fn func(ctx context.Context, in In) (string, error),
	options ...FuncToolOption,
) (*FuncTool[In], error) {
	cfg := funcToolConfig{}
	for _, o := range options {
		o(&cfg)
	}
	if name == "" {
		return nil, errors.New("tool name cannot be empty")
	}
	if fn == nil {
		return nil, errors.Errorf("tool %s has no function", name)
	}
	schema := SchemaFor[In]()
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal schema for tool %s", name)
	}
	return &FuncTool[In]{
		name:          name,
		description:   description,
		schema:        schema,
		schemaJSON:    b,
		fn:            fn,
		optionalInput: cfg.optionalInput,
	}, nil
}

// MustNewFuncTool is NewFuncTool for tools built from constant arguments.
func MustNewFuncTool[In any](
	name, description string,
	fn func(ctx context.Context, in In) (string, error),
	options ...FuncToolOption,
) *FuncTool[In] {
	t, err := NewFuncTool(name, description, fn, options...)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *FuncTool[In]) Name() string                   { return f.name }
func (f *FuncTool[In]) Description() string            { return f.description }
func (f *FuncTool[In]) Parameters() *jsonschema.Schema { return f.schema }

func (f *FuncTool[In]) Execute(ctx context.Context, in Input) (string, error) {
	var args In

	if !in.IsStructured() {
		// a bare string is acceptable when the tool takes a string
		rv := reflect.ValueOf(&args).Elem()
		if rv.Kind() != reflect.String {
			if f.optionalInput {
				return f.fn(ctx, args)
			}
			return fmt.Sprintf("Error: %s expects JSON input", f.name), nil
		}
		rv.SetString(in.Raw)
		return f.fn(ctx, args)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(f.schemaJSON),
		gojsonschema.NewGoLoader(in.Value),
	)
	if err != nil {
		return "", errors.Wrapf(err, "could not validate input for tool %s", f.name)
	}
	if !result.Valid() {
		if f.optionalInput {
			log.Debug().Str("tool", f.name).Msg("tools: ignoring input that does not fit the schema")
			return f.fn(ctx, args)
		}
		var descs []string
		for _, desc := range result.Errors() {
			descs = append(descs, desc.String())
		}
		return fmt.Sprintf("Error: invalid input: %s", strings.Join(descs, "; ")), nil
	}

	if err := in.Decode(&args); err != nil {
		if f.optionalInput {
			var zero In
			return f.fn(ctx, zero)
		}
		return fmt.Sprintf("Error: %s", err.Error()), nil
	}
	return f.fn(ctx, args)
}
