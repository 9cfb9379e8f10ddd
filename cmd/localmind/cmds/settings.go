package cmds

import (
	"context"
	"net/http"
	"time"

	"github.com/go-go-golems/localmind/pkg/config"
	"github.com/go-go-golems/localmind/pkg/events"
	"github.com/go-go-golems/localmind/pkg/helpers"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/go-go-golems/localmind/pkg/inference/factory"
	"github.com/go-go-golems/localmind/pkg/observe"
	"github.com/go-go-golems/localmind/pkg/react"
	"github.com/go-go-golems/localmind/pkg/tools"
	"github.com/go-go-golems/localmind/pkg/tools/builtin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddSettingsFlags adds the engine, generation and agent flags.
func AddSettingsFlags(flags *pflag.FlagSet) {
	flags.String("engine", "", "Inference engine (openai, ollama, echo)")
	flags.String("model", "", "Model name")
	flags.String("base-url", "", "Engine base URL (OpenAI-compatible server or Ollama host)")
	flags.String("api-key", "", "API key for OpenAI-compatible servers")

	flags.Float64("temperature", 0, "Sampling temperature")
	flags.Float64("top-p", 0, "Nucleus sampling probability mass")
	flags.Int("max-tokens", 0, "Maximum number of tokens to generate")

	flags.Int("max-steps", config.DefaultMaxSteps, "Maximum number of model calls per question")
	flags.String("persona", "", "Persona placed at the top of the system prompt")
	flags.String("preset", "", "Persona preset (assistant, coder, teacher, agent)")
	flags.String("presets-file", "", "YAML file with additional persona presets")
	flags.StringSlice("tools", nil, "Glob patterns of the tools to enable (default: all)")
}

// LoadSettings decodes the configuration and applies the generation flags
// that were set on the command line.
func LoadSettings(cmd *cobra.Command) (*config.Settings, error) {
	return loadSettings(cmd, "")
}

// loadSettings is LoadSettings with model standing in for engine.model when
// set, for commands that pick their models themselves.
func loadSettings(cmd *cobra.Command, model string) (*config.Settings, error) {
	s, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if model != "" {
		s.Engine.Model = model
	}

	flags := cmd.Flags()
	if f := flags.Lookup("temperature"); f != nil && f.Changed {
		t, _ := flags.GetFloat64("temperature")
		s.Generation.Temperature = helpers.Pointer(t)
	}
	if f := flags.Lookup("top-p"); f != nil && f.Changed {
		p, _ := flags.GetFloat64("top-p")
		s.Generation.TopP = helpers.Pointer(p)
	}
	if f := flags.Lookup("max-tokens"); f != nil && f.Changed {
		n, _ := flags.GetInt("max-tokens")
		s.Generation.MaxTokens = helpers.Pointer(n)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("engine", string(s.Engine.Type)).
		Str("model", s.Engine.Model).
		Object("options", s.Options()).
		Msg("settings loaded")
	return s, nil
}

// newEngine creates the configured engine, optionally for another model.
func newEngine(s *config.Settings, model string) (inference.Engine, error) {
	es := s.Engine
	if model != "" {
		es.Model = model
	}
	return factory.NewStandardEngineFactory().CreateEngine(es)
}

func newCatalog(s *config.Settings) (*tools.Snapshot, error) {
	registry := tools.NewRegistry(builtin.Defaults()...)
	return tools.Filter(registry, s.Agent.Tools...)
}

func newLoop(s *config.Settings, engine inference.Engine, sink events.Sink, metrics *observe.Metrics) (*react.Loop, error) {
	catalog, err := newCatalog(s)
	if err != nil {
		return nil, err
	}
	persona, err := s.Persona()
	if err != nil {
		return nil, err
	}
	return react.New(engine, catalog,
		react.WithMaxSteps(s.Agent.MaxSteps),
		react.WithPersona(persona),
		react.WithOptions(s.Options()),
		react.WithEventSink(sink),
		react.WithMetrics(metrics),
	)
}

// startMetrics serves Prometheus metrics on addr. Without an address the
// returned Metrics is nil, which turns recording off.
func startMetrics(ctx context.Context, addr string) (*observe.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}
	shutdownProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not initialize telemetry")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		if err := shutdownProvider(ctx); err != nil {
			log.Warn().Err(err).Msg("could not shut down telemetry")
		}
	}
	return observe.DefaultMetrics(), stop, nil
}
