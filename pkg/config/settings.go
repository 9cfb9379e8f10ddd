package config

import (
	"strings"

	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/go-go-golems/localmind/pkg/prompt"
	"github.com/go-go-golems/localmind/pkg/security"
	"github.com/huandu/go-clone"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type EngineType string

const (
	EngineTypeOpenAI EngineType = "openai"
	EngineTypeOllama EngineType = "ollama"
	EngineTypeEcho   EngineType = "echo"
)

var ErrUnknownEngine = errors.New("unknown engine type")

const DefaultMaxSteps = 5

type EngineSettings struct {
	Type    EngineType `yaml:"type" mapstructure:"type"`
	Model   string     `yaml:"model,omitempty" mapstructure:"model"`
	BaseURL string     `yaml:"base-url,omitempty" mapstructure:"base-url"`
	APIKey  string     `yaml:"api-key,omitempty" mapstructure:"api-key"`
}

type GenerationSettings struct {
	Temperature *float64 `yaml:"temperature,omitempty" mapstructure:"temperature"`
	TopP        *float64 `yaml:"top-p,omitempty" mapstructure:"top-p"`
	MaxTokens   *int     `yaml:"max-tokens,omitempty" mapstructure:"max-tokens"`
}

type AgentSettings struct {
	MaxSteps int    `yaml:"max-steps" mapstructure:"max-steps"`
	Persona  string `yaml:"persona,omitempty" mapstructure:"persona"`
	// Preset names a persona preset; an explicit Persona wins over it.
	Preset      string   `yaml:"preset,omitempty" mapstructure:"preset"`
	PresetsFile string   `yaml:"presets-file,omitempty" mapstructure:"presets-file"`
	Tools       []string `yaml:"tools,omitempty" mapstructure:"tools"`
}

type Settings struct {
	Engine      EngineSettings     `yaml:"engine" mapstructure:"engine"`
	Generation  GenerationSettings `yaml:"generation" mapstructure:"generation"`
	Agent       AgentSettings      `yaml:"agent" mapstructure:"agent"`
	MetricsAddr string             `yaml:"metrics-addr,omitempty" mapstructure:"metrics-addr"`
}

func NewSettings() *Settings {
	return &Settings{
		Engine: EngineSettings{
			Type: EngineTypeOllama,
		},
		Agent: AgentSettings{
			MaxSteps: DefaultMaxSteps,
		},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// SetDefaults registers the default values with v so that they show up in
// AllSettings and can be overridden by any source.
func SetDefaults(v *viper.Viper) {
	d := NewSettings()
	v.SetDefault("engine.type", string(d.Engine.Type))
	v.SetDefault("agent.max-steps", d.Agent.MaxSteps)
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	s, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Decode decodes the settings held by v without validating them, for callers
// that complete the settings first. The engine type is lowercased and a bare
// host:port base URL gets its http scheme.
func Decode(v *viper.Viper) (*Settings, error) {
	s := NewSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	s.Engine.Type = EngineType(strings.ToLower(string(s.Engine.Type)))
	s.Engine.BaseURL = security.NormalizeEndpoint(s.Engine.BaseURL)
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Engine.Type {
	case EngineTypeOpenAI, EngineTypeOllama:
		if s.Engine.Model == "" {
			return errors.Errorf("engine %s needs a model", s.Engine.Type)
		}
	case EngineTypeEcho:
	default:
		return errors.Wrapf(ErrUnknownEngine, "%q", s.Engine.Type)
	}
	if s.Engine.BaseURL != "" {
		endpoint := security.NormalizeEndpoint(s.Engine.BaseURL)
		if err := security.ValidateEndpoint(endpoint, security.LocalEngines); err != nil {
			return errors.Wrapf(err, "invalid engine.base-url %q", s.Engine.BaseURL)
		}
	}

	if s.Agent.MaxSteps < 1 {
		return errors.Errorf("agent.max-steps must be at least 1, got %d", s.Agent.MaxSteps)
	}
	if t := s.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return errors.Errorf("generation.temperature must be within [0, 2], got %v", *t)
	}
	if p := s.Generation.TopP; p != nil && (*p < 0 || *p > 1) {
		return errors.Errorf("generation.top-p must be within [0, 1], got %v", *p)
	}
	if m := s.Generation.MaxTokens; m != nil && *m < 1 {
		return errors.Errorf("generation.max-tokens must be positive, got %d", *m)
	}
	for _, pattern := range s.Agent.Tools {
		if _, err := glob.Match(pattern, ""); err != nil {
			return errors.Wrapf(err, "invalid tool pattern %q", pattern)
		}
	}
	return nil
}

// Options returns the generation parameters for engine calls.
func (s *Settings) Options() inference.Options {
	opts := inference.Options{}
	if s.Generation.Temperature != nil {
		opts = opts.WithTemperature(*s.Generation.Temperature)
	}
	if s.Generation.TopP != nil {
		opts = opts.WithTopP(*s.Generation.TopP)
	}
	if s.Generation.MaxTokens != nil {
		opts = opts.WithMaxTokens(*s.Generation.MaxTokens)
	}
	return opts
}

// Presets returns the built-in presets extended with the configured file.
func (s *Settings) Presets() (*prompt.Presets, error) {
	presets := prompt.BuiltinPresets()
	if s.Agent.PresetsFile != "" {
		if err := presets.LoadFile(s.Agent.PresetsFile); err != nil {
			return nil, err
		}
	}
	return presets, nil
}

// Persona resolves the persona text: an explicit persona, then a preset,
// then "" which leaves the prompt compiler's default in place.
func (s *Settings) Persona() (string, error) {
	if s.Agent.Persona != "" {
		return s.Agent.Persona, nil
	}
	if s.Agent.Preset == "" {
		return "", nil
	}
	presets, err := s.Presets()
	if err != nil {
		return "", err
	}
	p, ok := presets.Lookup(s.Agent.Preset)
	if !ok {
		return "", errors.Errorf("unknown preset %q", s.Agent.Preset)
	}
	return p.Prompt, nil
}
