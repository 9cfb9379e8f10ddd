// Package mock provides deterministic engines for tests and offline use.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/pkg/errors"
)

// ErrScriptExhausted is returned when a ScriptedEngine runs out of replies.
var ErrScriptExhausted = errors.New("mock: no scripted reply left")

// Reply is one scripted engine response.
type Reply struct {
	Text string
	Err  error
}

// ScriptedEngine returns its replies in order and records every request.
type ScriptedEngine struct {
	replies []Reply
	calls   atomic.Int32
	repeat  bool

	mu       sync.Mutex
	requests []conversation.Conversation
	options  []inference.Options
}

var _ inference.Engine = (*ScriptedEngine)(nil)
var _ inference.Named = (*ScriptedEngine)(nil)

func NewScriptedEngine(replies ...string) *ScriptedEngine {
	e := &ScriptedEngine{}
	for _, r := range replies {
		e.replies = append(e.replies, Reply{Text: r})
	}
	return e
}

func NewScriptedEngineWithReplies(replies ...Reply) *ScriptedEngine {
	return &ScriptedEngine{replies: replies}
}

// Repeat makes the engine return its last reply forever once the script ends.
func (e *ScriptedEngine) Repeat() *ScriptedEngine {
	e.repeat = true
	return e
}

func (e *ScriptedEngine) Model() string { return "scripted" }

func (e *ScriptedEngine) RunInference(ctx context.Context, messages conversation.Conversation, opts inference.Options) (string, error) {
	idx := int(e.calls.Add(1)) - 1

	e.mu.Lock()
	e.requests = append(e.requests, messages.Clone())
	e.options = append(e.options, opts)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if idx >= len(e.replies) {
		if !e.repeat || len(e.replies) == 0 {
			return "", ErrScriptExhausted
		}
		idx = len(e.replies) - 1
	}
	r := e.replies[idx]
	return r.Text, r.Err
}

// Calls returns how many times RunInference was called.
func (e *ScriptedEngine) Calls() int {
	return int(e.calls.Load())
}

// Requests returns a copy of each conversation the engine received.
func (e *ScriptedEngine) Requests() []conversation.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]conversation.Conversation(nil), e.requests...)
}

// Options returns the options passed with each call.
func (e *ScriptedEngine) Options() []inference.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]inference.Options(nil), e.options...)
}

// EchoEngine streams the last user message back, one character at a time.
type EchoEngine struct {
	inference.Interrupter
	TimePerCharacter time.Duration
}

var _ inference.StreamingEngine = (*EchoEngine)(nil)
var _ inference.Interruptible = (*EchoEngine)(nil)

func NewEchoEngine() *EchoEngine {
	return &EchoEngine{TimePerCharacter: 10 * time.Millisecond}
}

func (e *EchoEngine) Model() string { return "echo" }

func (e *EchoEngine) RunInference(ctx context.Context, messages conversation.Conversation, opts inference.Options) (string, error) {
	return e.RunInferenceStream(ctx, messages, opts, nil)
}

func (e *EchoEngine) RunInferenceStream(
	ctx context.Context,
	messages conversation.Conversation,
	opts inference.Options,
	onDelta inference.DeltaFunc,
) (string, error) {
	text := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == conversation.RoleUser {
			text = messages[i].Content
			break
		}
	}
	if text == "" {
		return "", errors.New("mock: no user message to echo")
	}
	// one character stands for one token
	if runes := []rune(text); opts.MaxTokens != nil && *opts.MaxTokens < len(runes) {
		text = string(runes[:*opts.MaxTokens])
	}

	ctx, finish := e.Start(ctx)
	message := ""
	for _, c := range text {
		select {
		case <-ctx.Done():
			return message, finish(ctx.Err(), message)
		case <-time.After(e.TimePerCharacter):
		}
		message += string(c)
		if onDelta != nil {
			if err := onDelta(string(c)); err != nil {
				return message, finish(err, message)
			}
		}
	}
	return message, finish(nil, message)
}
