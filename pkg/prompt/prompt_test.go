package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/localmind/pkg/tools"
	"github.com/go-go-golems/localmind/pkg/tools/builtin"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTool struct {
	name, desc string
}

func (n namedTool) Name() string                   { return n.name }
func (n namedTool) Description() string            { return n.desc }
func (n namedTool) Parameters() *jsonschema.Schema { return nil }
func (n namedTool) Execute(context.Context, tools.Input) (string, error) {
	return "", nil
}

func TestCompileSystemPromptExactText(t *testing.T) {
	r := tools.NewRegistry(
		namedTool{"A", "does a"},
		namedTool{"B", "does b"},
	)

	expected := `Be brief.

You have access to the following tools:
A: does a
B: does b

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [A, B]
Action Input: the input to the action (must be valid JSON)
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!`

	assert.Equal(t, expected, CompileSystemPrompt(r, "Be brief."))
}

func TestCompileSystemPromptDefaultPersona(t *testing.T) {
	out := CompileSystemPrompt(tools.NewRegistry(builtin.Defaults()...), "")

	assert.True(t, strings.HasPrefix(out, DefaultPersona+"\n\n"))
	assert.Contains(t, out, "Calculator: Perform basic arithmetic calculations.")
	assert.Contains(t, out, "Time: Get the current time and date.")
	assert.Contains(t, out, "should be one of [Calculator, Time]")
	assert.True(t, strings.HasSuffix(out, "Begin!"))
}

func TestCompileSystemPromptIsIdempotent(t *testing.T) {
	r := tools.NewRegistry(builtin.Defaults()...)
	assert.Equal(t, CompileSystemPrompt(r, "x"), CompileSystemPrompt(r, "x"))
}

func TestCompileSystemPromptEmptyCatalog(t *testing.T) {
	out := CompileSystemPrompt(nil, "p")
	assert.Contains(t, out, "following tools:\n\n\nUse the following format:")
	assert.Contains(t, out, "should be one of []")
}

func TestLookupPreset(t *testing.T) {
	for _, name := range []string{"coder", "Coder", " coder "} {
		p, ok := LookupPreset(name)
		require.True(t, ok, name)
		assert.Equal(t, "You are a senior software engineer. Write clean, production-quality code.", p.Prompt)
	}

	_, ok := LookupPreset("pirate")
	assert.False(t, ok)

	names := []string{}
	for _, p := range BuiltinPresets().List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"assistant", "coder", "teacher", "agent"}, names)
}

func TestPresetsLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: Teacher
  prompt: You explain things with analogies.
- name: PirateCaptain
  prompt: Arr.
`), 0o644))

	p := BuiltinPresets()
	require.NoError(t, p.LoadFile(path))

	teacher, ok := p.Lookup("teacher")
	require.True(t, ok)
	assert.Equal(t, "You explain things with analogies.", teacher.Prompt)

	pirate, ok := p.Lookup("pirate-captain")
	require.True(t, ok)
	assert.Equal(t, "Arr.", pirate.Prompt)
	assert.Len(t, p.List(), 5)

	// the embedded set is untouched
	teacher, _ = LookupPreset("teacher")
	assert.Equal(t, "You are a patient teacher who explains concepts step by step.", teacher.Prompt)
}

func TestParsePresetsRequiresNames(t *testing.T) {
	_, err := ParsePresets([]byte("- prompt: nameless\n"))
	require.Error(t, err)
}
