package inference

import (
	"context"

	"github.com/go-go-golems/localmind/pkg/conversation"
)

// Engine is a chat model. RunInference sends the role-tagged conversation and
// returns the complete assistant reply. Engines must not mutate messages.
type Engine interface {
	RunInference(ctx context.Context, messages conversation.Conversation, opts Options) (string, error)
}

// DeltaFunc receives streamed text as it is generated. Returning an error
// aborts the generation.
type DeltaFunc func(delta string) error

// StreamingEngine can additionally deliver the reply incrementally. The
// returned string is the full reply, identical to the concatenated deltas.
type StreamingEngine interface {
	Engine
	RunInferenceStream(ctx context.Context, messages conversation.Conversation, opts Options, onDelta DeltaFunc) (string, error)
}

// Interruptible engines can stop the generation in flight from another
// goroutine. The interrupted call returns an *InterruptedError carrying the
// text produced so far.
type Interruptible interface {
	Interrupt() bool
}

// Named engines report the model they talk to, for logs and metrics.
type Named interface {
	Model() string
}

// ModelName returns the model name of e, or "unknown".
func ModelName(e Engine) string {
	if n, ok := e.(Named); ok && n.Model() != "" {
		return n.Model()
	}
	return "unknown"
}
