package prompt

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/localmind/pkg/tools"
)

// DefaultPersona is used when no persona is given.
const DefaultPersona = "You are a helpful assistant."

// The wording of this template is what models are prompted with; keep it
// stable.
const systemPromptTemplate = `{{ .Persona }}

You have access to the following tools:
{{ .Descriptions | join "\n" }}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{{ .Names | join ", " }}]
Action Input: the input to the action (must be valid JSON)
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!`

var systemPrompt = template.Must(
	template.New("system-prompt").Funcs(sprig.TxtFuncMap()).Parse(systemPromptTemplate),
)

type templateData struct {
	Persona      string
	Descriptions []string
	Names        []string
}

// CompileSystemPrompt renders the persona, the tool catalog and the ReAct
// protocol instructions into one system prompt. The output only depends on
// the persona and the catalog listing, so compiling twice yields the same
// text.
func CompileSystemPrompt(catalog tools.Catalog, persona string) string {
	if persona == "" {
		persona = DefaultPersona
	}
	data := templateData{
		Persona:      persona,
		Descriptions: []string{},
		Names:        []string{},
	}
	if catalog != nil {
		for _, t := range catalog.List() {
			data.Descriptions = append(data.Descriptions, t.Name()+": "+t.Description())
			data.Names = append(data.Names, t.Name())
		}
	}

	buf := &bytes.Buffer{}
	// the template is static and the data plain strings, execution cannot fail
	_ = systemPrompt.Execute(buf, data)
	return buf.String()
}
