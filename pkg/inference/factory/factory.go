package factory

import (
	"os"
	"strings"

	"github.com/go-go-golems/localmind/pkg/config"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/go-go-golems/localmind/pkg/inference/mock"
	"github.com/go-go-golems/localmind/pkg/inference/ollama"
	"github.com/go-go-golems/localmind/pkg/inference/openai"
	"github.com/pkg/errors"
)

// EngineFactory creates inference engines from engine settings, so callers do
// not need to know the concrete providers.
type EngineFactory interface {
	CreateEngine(settings config.EngineSettings) (inference.Engine, error)
	SupportedProviders() []string
	DefaultProvider() string
}

type StandardEngineFactory struct{}

var _ EngineFactory = (*StandardEngineFactory)(nil)

func NewStandardEngineFactory() *StandardEngineFactory {
	return &StandardEngineFactory{}
}

// CreateEngine builds the engine named by settings.Type. An empty type falls
// back to the default provider.
func (f *StandardEngineFactory) CreateEngine(settings config.EngineSettings) (inference.Engine, error) {
	provider := strings.ToLower(string(settings.Type))
	if provider == "" {
		provider = f.DefaultProvider()
	}

	switch config.EngineType(provider) {
	case config.EngineTypeOpenAI:
		apiKey := settings.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.NewEngine(openai.Settings{
			Model:   settings.Model,
			BaseURL: settings.BaseURL,
			APIKey:  apiKey,
		})

	case config.EngineTypeOllama:
		return ollama.NewEngine(ollama.Settings{
			Model: settings.Model,
			Host:  settings.BaseURL,
		})

	case config.EngineTypeEcho:
		return mock.NewEchoEngine(), nil

	default:
		return nil, errors.Wrapf(config.ErrUnknownEngine, "%q (supported: %s)",
			provider, strings.Join(f.SupportedProviders(), ", "))
	}
}

func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(config.EngineTypeOpenAI),
		string(config.EngineTypeOllama),
		string(config.EngineTypeEcho),
	}
}

func (f *StandardEngineFactory) DefaultProvider() string {
	return string(config.EngineTypeOllama)
}
