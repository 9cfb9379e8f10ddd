// Package openai talks to OpenAI-compatible chat completion servers, which
// covers llama.cpp, vLLM, LM Studio and the hosted OpenAI API.
package openai

import (
	"context"
	"io"
	"strings"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Settings struct {
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base-url,omitempty" mapstructure:"base-url"`
	APIKey  string `yaml:"api-key,omitempty" mapstructure:"api-key"`
}

// Engine implements inference.StreamingEngine on top of go-openai.
type Engine struct {
	inference.Interrupter
	settings Settings
	client   *go_openai.Client
}

var _ inference.StreamingEngine = (*Engine)(nil)
var _ inference.Interruptible = (*Engine)(nil)

func NewEngine(settings Settings) (*Engine, error) {
	if settings.Model == "" {
		return nil, errors.New("openai: no model specified")
	}
	return &Engine{
		settings: settings,
		client:   MakeClient(settings),
	}, nil
}

// MakeClient builds a client for the configured server. Local servers usually
// accept any API key.
func MakeClient(settings Settings) *go_openai.Client {
	config := go_openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	}
	return go_openai.NewClientWithConfig(config)
}

func (e *Engine) Model() string { return e.settings.Model }

// MakeCompletionRequest converts the conversation and options into a
// chat completion request.
func MakeCompletionRequest(model string, messages conversation.Conversation, opts inference.Options) go_openai.ChatCompletionRequest {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	req := go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   opts.Stream,
		Stop:     opts.Stop,
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	return req
}

func (e *Engine) RunInference(ctx context.Context, messages conversation.Conversation, opts inference.Options) (string, error) {
	if opts.Stream {
		return e.RunInferenceStream(ctx, messages, opts, nil)
	}

	ctx, finish := e.Start(ctx)
	req := MakeCompletionRequest(e.settings.Model, messages, opts)
	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Object("options", opts).Msg("openai: chat completion")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", finish(errors.Wrap(err, "openai chat completion failed"), "")
	}
	if len(resp.Choices) == 0 {
		return "", finish(errors.New("openai returned no choices"), "")
	}
	return resp.Choices[0].Message.Content, finish(nil, "")
}

func (e *Engine) RunInferenceStream(
	ctx context.Context,
	messages conversation.Conversation,
	opts inference.Options,
	onDelta inference.DeltaFunc,
) (string, error) {
	ctx, finish := e.Start(ctx)
	req := MakeCompletionRequest(e.settings.Model, messages, opts.WithStream(true))
	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("openai: streaming chat completion")

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", finish(errors.Wrap(err, "openai streaming request failed"), "")
	}
	defer stream.Close()

	message := ""
	chunkCount := 0
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", chunkCount).Msg("openai: stream completed")
			return message, finish(nil, message)
		}
		if err != nil {
			if ctx.Err() != nil {
				return message, finish(ctx.Err(), message)
			}
			return message, finish(errors.Wrap(err, "openai stream receive failed"), message)
		}
		chunkCount++

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		message += delta
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return message, finish(err, message)
			}
		}
	}
}
