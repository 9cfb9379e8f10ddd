package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/localmind/pkg/helpers"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
engine:
  type: OpenAI
  model: qwen2.5
  base-url: http://localhost:8080/v1
generation:
  temperature: 0.3
  max-tokens: 256
agent:
  max-steps: 3
  preset: coder
  tools:
    - Calc*
`

func loadYAML(t *testing.T, s string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(s)))
	return v
}

func TestLoad(t *testing.T) {
	s, err := Load(loadYAML(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, EngineTypeOpenAI, s.Engine.Type)
	assert.Equal(t, "qwen2.5", s.Engine.Model)
	assert.Equal(t, "http://localhost:8080/v1", s.Engine.BaseURL)
	assert.Equal(t, 3, s.Agent.MaxSteps)
	assert.Equal(t, []string{"Calc*"}, s.Agent.Tools)

	opts := s.Options()
	require.NotNil(t, opts.Temperature)
	assert.Equal(t, 0.3, *opts.Temperature)
	assert.Nil(t, opts.TopP)
	assert.Equal(t, 256, *opts.MaxTokens)

	persona, err := s.Persona()
	require.NoError(t, err)
	assert.Equal(t, "You are a senior software engineer. Write clean, production-quality code.", persona)
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(loadYAML(t, "engine:\n  model: llama3\n"))
	require.NoError(t, err)
	assert.Equal(t, EngineTypeOllama, s.Engine.Type)
	assert.Equal(t, DefaultMaxSteps, s.Agent.MaxSteps)

	persona, err := s.Persona()
	require.NoError(t, err)
	assert.Equal(t, "", persona)
}

func TestLoadNormalizesBaseURL(t *testing.T) {
	s, err := Load(loadYAML(t, "engine:\n  type: openai\n  model: qwen2.5\n  base-url: localhost:8080/v1\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", s.Engine.BaseURL)

	s, err = Load(loadYAML(t, "engine:\n  model: llama3\n"))
	require.NoError(t, err)
	assert.Equal(t, "", s.Engine.BaseURL)
}

func TestDecodeDoesNotValidate(t *testing.T) {
	v := loadYAML(t, "engine:\n  type: Ollama\n")
	_, err := Load(v)
	assert.Error(t, err)

	s, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, EngineTypeOllama, s.Engine.Type)
	s.Engine.Model = "llama3"
	require.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	s := NewSettings()
	s.Engine.Type = "gpt-magic"
	assert.ErrorIs(t, s.Validate(), ErrUnknownEngine)

	s = NewSettings()
	assert.Error(t, s.Validate(), "ollama without model")

	s.Engine.Model = "llama3"
	require.NoError(t, s.Validate())

	s.Agent.MaxSteps = 0
	assert.Error(t, s.Validate())

	s = NewSettings()
	s.Engine.Type = EngineTypeEcho
	s.Generation.Temperature = helpers.Pointer(3.0)
	assert.Error(t, s.Validate())

	s.Generation.Temperature = nil
	require.NoError(t, s.Validate())

	s.Engine.BaseURL = "localhost:11434"
	require.NoError(t, s.Validate())
	s.Engine.BaseURL = "ftp://models.example.com"
	assert.Error(t, s.Validate())
}

func TestClone(t *testing.T) {
	s := NewSettings()
	s.Generation.TopP = helpers.Pointer(0.9)
	s.Agent.Tools = []string{"a"}

	c := s.Clone()
	*c.Generation.TopP = 0.1
	c.Agent.Tools[0] = "b"

	assert.Equal(t, 0.9, *s.Generation.TopP)
	assert.Equal(t, "a", s.Agent.Tools[0])
}

func TestPersonaWithPresetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: pirate\n  prompt: Arr.\n"), 0o644))

	s := NewSettings()
	s.Agent.Preset = "Pirate"
	s.Agent.PresetsFile = path
	persona, err := s.Persona()
	require.NoError(t, err)
	assert.Equal(t, "Arr.", persona)

	s.Agent.Persona = "explicit"
	persona, err = s.Persona()
	require.NoError(t, err)
	assert.Equal(t, "explicit", persona)

	s.Agent.Persona = ""
	s.Agent.Preset = "nobody"
	_, err = s.Persona()
	assert.Error(t, err)
}
