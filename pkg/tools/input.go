package tools

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Input is the argument handed to Tool.Execute. Raw always holds the trimmed
// action input text. When that text (minus code fences) parses as JSON,
// Value holds the decoded value and IsStructured reports true.
type Input struct {
	Raw        string
	Value      any
	structured bool
}

// ParseInput interprets the text captured after "Action Input:". Malformed
// JSON is not an error: the input silently falls back to the raw string.
func ParseInput(raw string) Input {
	raw = strings.TrimSpace(raw)
	in := Input{Raw: raw}

	var v any
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &v); err == nil {
		in.Value = v
		in.structured = true
	}
	return in
}

// RawInput builds an unstructured input from a plain string.
func RawInput(s string) Input {
	return Input{Raw: s}
}

// StructuredInput builds an input from an already decoded value.
func StructuredInput(v any) (Input, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Input{}, errors.Wrap(err, "could not marshal tool input")
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return Input{}, errors.Wrap(err, "could not unmarshal tool input")
	}
	return Input{Raw: string(b), Value: decoded, structured: true}, nil
}

func (in Input) IsStructured() bool {
	return in.structured
}

// Decode unmarshals the structured value into v.
func (in Input) Decode(v any) error {
	if !in.structured {
		return errors.New("tool input is not JSON")
	}
	b, err := json.Marshal(in.Value)
	if err != nil {
		return errors.Wrap(err, "could not re-encode tool input")
	}
	return json.Unmarshal(b, v)
}

// Field returns a top-level field of a structured object input.
func (in Input) Field(name string) (any, bool) {
	m, ok := in.Value.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// String returns the input as text: the decoded value if the input was a
// JSON string, the raw text otherwise.
func (in Input) String() string {
	if s, ok := in.Value.(string); ok && in.structured {
		return s
	}
	return in.Raw
}

// StripCodeFences removes markdown code fences around s. A fenced block is
// extracted with goldmark; otherwise stray ```json and ``` markers are
// removed.
func StripCodeFences(s string) string {
	source := []byte(s)
	document := goldmark.DefaultParser().Parse(text.NewReader(source))

	var block *ast.FencedCodeBlock
	_ = ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fcb, ok := n.(*ast.FencedCodeBlock); ok {
			block = fcb
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if block != nil {
		var sb strings.Builder
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimSpace(sb.String())
	}

	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
