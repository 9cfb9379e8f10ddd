package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		structured bool
		value      any
		rawOut     string
	}{
		{
			name:       "json object",
			raw:        `{"expression": "2+2"}`,
			structured: true,
			value:      map[string]any{"expression": "2+2"},
			rawOut:     `{"expression": "2+2"}`,
		},
		{
			name:       "fenced json",
			raw:        "```json\n{\"a\": 1}\n```",
			structured: true,
			value:      map[string]any{"a": float64(1)},
			rawOut:     "```json\n{\"a\": 1}\n```",
		},
		{
			name:       "inline fence markers",
			raw:        "```json {\"a\": 1}```",
			structured: true,
			value:      map[string]any{"a": float64(1)},
			rawOut:     "```json {\"a\": 1}```",
		},
		{
			name:       "quoted string",
			raw:        `"hello"`,
			structured: true,
			value:      "hello",
			rawOut:     `"hello"`,
		},
		{
			name:       "not json",
			raw:        "  not-json-at-all \n",
			structured: false,
			value:      nil,
			rawOut:     "not-json-at-all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ParseInput(tt.raw)
			assert.Equal(t, tt.structured, in.IsStructured())
			assert.Equal(t, tt.value, in.Value)
			assert.Equal(t, tt.rawOut, in.Raw)
		})
	}
}

func TestInputString(t *testing.T) {
	assert.Equal(t, "hello", ParseInput(`"hello"`).String())
	assert.Equal(t, "2 + 2", ParseInput("2 + 2").String())
	assert.Equal(t, `{"a":1}`, ParseInput(`{"a":1}`).String())
}

func TestInputDecodeAndField(t *testing.T) {
	in := ParseInput(`{"expression": "1+1", "n": 3}`)

	v, ok := in.Field("expression")
	require.True(t, ok)
	assert.Equal(t, "1+1", v)

	var out struct {
		Expression string `json:"expression"`
		N          int    `json:"n"`
	}
	require.NoError(t, in.Decode(&out))
	assert.Equal(t, 3, out.N)

	require.Error(t, RawInput("x").Decode(&out))
}

func TestFuncToolValidatesStructuredInput(t *testing.T) {
	type echoIn struct {
		Text string `json:"text" jsonschema:"required"`
	}
	tool, err := NewFuncTool("echo", "Echo back the text", func(ctx context.Context, in echoIn) (string, error) {
		return "echo: " + in.Text, nil
	})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), ParseInput(`{"text": "hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", res)

	res, err = tool.Execute(context.Background(), ParseInput(`{"other": 1}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res, "Error: invalid input"), res)

	res, err = tool.Execute(context.Background(), ParseInput("plain text"))
	require.NoError(t, err)
	assert.Equal(t, "Error: echo expects JSON input", res)
}

func TestFuncToolAcceptsRawStringForStringInput(t *testing.T) {
	tool, err := NewFuncTool("shout", "Upper-case the input", func(ctx context.Context, in string) (string, error) {
		return strings.ToUpper(in), nil
	})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), ParseInput("hello"))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", res)

	res, err = tool.Execute(context.Background(), ParseInput(`"quoted"`))
	require.NoError(t, err)
	assert.Equal(t, "QUOTED", res)
}

func TestSchemaForScalars(t *testing.T) {
	assert.Equal(t, "string", SchemaFor[string]().Type)
	assert.Equal(t, "integer", SchemaFor[int]().Type)
	assert.Equal(t, "array", SchemaFor[[]string]().Type)
	assert.Equal(t, "object", SchemaFor[any]().Type)

	type point struct {
		X int `json:"x"`
	}
	s := SchemaFor[*point]()
	assert.Equal(t, "object", s.Type)
	_, ok := s.Properties.Get("x")
	assert.True(t, ok)
}

func TestFuncToolOptionalInput(t *testing.T) {
	type greetIn struct {
		Name string `json:"name,omitempty"`
	}
	tool, err := NewFuncTool("greet", "Greet someone", func(ctx context.Context, in greetIn) (string, error) {
		if in.Name == "" {
			return "hello, stranger", nil
		}
		return "hello, " + in.Name, nil
	}, WithOptionalInput())
	require.NoError(t, err)

	for input, want := range map[string]string{
		`{"name": "Ada"}`: "hello, Ada",
		`{}`:              "hello, stranger",
		"":                "hello, stranger",
		"whoever":         "hello, stranger",
		`{"name": 3}`:     "hello, stranger",
	} {
		res, err := tool.Execute(context.Background(), ParseInput(input))
		require.NoError(t, err)
		assert.Equal(t, want, res, input)
	}
}

func TestMustNewFuncToolPanicsWithoutName(t *testing.T) {
	assert.Panics(t, func() {
		MustNewFuncTool("", "nameless", func(ctx context.Context, in string) (string, error) {
			return in, nil
		})
	})
}
