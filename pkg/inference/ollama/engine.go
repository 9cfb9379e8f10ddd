// Package ollama runs chat inference against a local Ollama server.
package ollama

import (
	"context"
	"os"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Settings struct {
	Model string `yaml:"model" mapstructure:"model"`
	// Host overrides OLLAMA_HOST, e.g. "http://127.0.0.1:11434".
	Host string `yaml:"host,omitempty" mapstructure:"host"`
	// Extra holds raw Ollama options such as num_ctx or seed.
	Extra map[string]interface{} `yaml:"extra,omitempty" mapstructure:"extra"`
}

// Chatter is the part of the Ollama client the engine uses.
type Chatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

type Engine struct {
	inference.Interrupter
	settings Settings
	client   Chatter
}

var _ inference.StreamingEngine = (*Engine)(nil)
var _ inference.Interruptible = (*Engine)(nil)

func NewEngine(settings Settings) (*Engine, error) {
	if settings.Model == "" {
		return nil, errors.New("ollama: no model specified")
	}
	if settings.Host != "" {
		// the client only reads its address from the environment
		if err := os.Setenv("OLLAMA_HOST", settings.Host); err != nil {
			return nil, errors.Wrap(err, "could not set OLLAMA_HOST")
		}
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return NewEngineWithClient(settings, client), nil
}

func NewEngineWithClient(settings Settings, client Chatter) *Engine {
	return &Engine{settings: settings, client: client}
}

func (e *Engine) Model() string { return e.settings.Model }

// MakeChatRequest converts the conversation and options into an Ollama
// request. Responses are always streamed.
func MakeChatRequest(settings Settings, messages conversation.Conversation, opts inference.Options) *api.ChatRequest {
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	options := map[string]interface{}{}
	for k, v := range settings.Extra {
		options[k] = v
	}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.TopP != nil {
		options["top_p"] = *opts.TopP
	}
	if opts.MaxTokens != nil {
		options["num_predict"] = *opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}

	stream := true
	return &api.ChatRequest{
		Model:    settings.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}
}

func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation, opts inference.Options) (string, error) {
	return e.RunInferenceStream(ctx, messages, opts, nil)
}

func (e *Engine) RunInferenceStream(
	ctx context.Context,
	messages conversation.Conversation,
	opts inference.Options,
	onDelta inference.DeltaFunc,
) (string, error) {
	ctx, finish := e.Start(ctx)
	req := MakeChatRequest(e.settings, messages, opts)
	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Object("options", opts).Msg("ollama: chat")

	message := ""
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Done {
			return nil
		}
		delta := resp.Message.Content
		if delta == "" {
			return nil
		}
		message += delta
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return message, finish(ctx.Err(), message)
		}
		return message, finish(errors.Wrap(err, "ollama chat failed"), message)
	}
	return message, finish(nil, message)
}
