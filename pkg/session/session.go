// Package session keeps a multi-turn conversation with one model. Each
// exchange runs either through the agent loop or as a plain chat call, and
// can be interrupted while the model is still generating: the partial reply
// is kept as the assistant turn.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/events"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/go-go-golems/localmind/pkg/observe"
	"github.com/go-go-golems/localmind/pkg/react"
	"github.com/go-go-golems/localmind/pkg/tokens"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNil           = errors.New("session is nil")
	ErrSessionAlreadyActive = errors.New("session already has an active inference")
	ErrSessionNoActive      = errors.New("session has no active inference")
	ErrNoEngine             = errors.New("session has no inference engine")
	ErrNoAgent              = errors.New("session has no agent loop")
	ErrEmptyPrompt          = errors.New("prompt is empty")
)

// Reply is the outcome of one exchange.
type Reply struct {
	InferenceID uuid.UUID
	Text        string
	// Agent is set when the reply came from the agent loop.
	Agent bool
	// Outcome is only set for agent replies.
	Outcome events.Outcome
	// Steps is the number of model calls of an agent reply.
	Steps       int
	Interrupted bool
	Usage       tokens.Usage
}

// Session represents a long-lived, multi-turn interaction.
//
// It owns:
// - a stable SessionID
// - the user and assistant turns exchanged so far
// - the invariant that only one exchange is active at a time
type Session struct {
	SessionID string

	engine       inference.Engine
	loop         *react.Loop
	systemPrompt string
	options      inference.Options
	counter      tokens.Counter
	sink         events.Sink
	metrics      *observe.Metrics

	mu      sync.Mutex
	agent   bool
	history conversation.Conversation
	usage   tokens.Usage
	active  *ExecutionHandle
}

type Option func(*Session)

// WithLoop sets the agent loop and turns agent mode on. The loop should use
// the same engine as the session so Interrupt reaches it.
func WithLoop(loop *react.Loop) Option {
	return func(s *Session) {
		s.loop = loop
		s.agent = loop != nil
	}
}

// WithSystemPrompt sets the system prompt of plain chat exchanges. Agent
// exchanges use the loop's prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		s.systemPrompt = prompt
	}
}

// WithOptions sets the generation parameters of plain chat exchanges. With
// Stream set and a streaming engine, partial completion events are published.
func WithOptions(opts inference.Options) Option {
	return func(s *Session) {
		s.options = opts
	}
}

func WithCounter(c tokens.Counter) Option {
	return func(s *Session) {
		if c != nil {
			s.counter = c
		}
	}
}

func WithEventSink(sink events.Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.SessionID = id
		}
	}
}

// NewSession constructs a Session with a generated SessionID.
func NewSession(engine inference.Engine, options ...Option) (*Session, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	s := &Session{
		SessionID: uuid.NewString(),
		engine:    engine,
		counter:   tokens.Heuristic{},
		sink:      events.NewNullSink(),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Model is the model name of the session engine.
func (s *Session) Model() string {
	return inference.ModelName(s.engine)
}

// SetAgent switches between agent and plain chat exchanges.
func (s *Session) SetAgent(on bool) error {
	if on && s.loop == nil {
		return ErrNoAgent
	}
	s.mu.Lock()
	s.agent = on
	s.mu.Unlock()
	return nil
}

func (s *Session) Agent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent
}

// History returns a copy of the turns exchanged so far. It never contains a
// system message.
func (s *Session) History() conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// Usage returns the estimated token usage since the last reset.
func (s *Session) Usage() tokens.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Reset forgets the history and usage. It fails while an exchange is active.
func (s *Session) Reset() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.IsRunning() {
		return ErrSessionAlreadyActive
	}
	s.history = nil
	s.usage = tokens.Usage{}
	log.Debug().Str("session_id", s.SessionID).Msg("session: reset")
	return nil
}

// IsRunning reports whether the session currently has an active exchange.
func (s *Session) IsRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

// Ask runs one exchange and waits for its reply.
func (s *Session) Ask(ctx context.Context, prompt string) (*Reply, error) {
	h, err := s.Start(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

// Start starts an exchange asynchronously and returns its ExecutionHandle.
//
// On success the user prompt and the reply are appended to the history. An
// interrupted exchange succeeds with the partial reply. Any other failure
// leaves the history untouched.
func (s *Session) Start(ctx context.Context, prompt string) (*ExecutionHandle, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.active != nil && s.active.IsRunning() {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	history := s.history.Clone()
	agent := s.agent
	inferenceID := uuid.New()
	runCtx, cancel := context.WithCancel(WithSessionMeta(ctx, s.SessionID, inferenceID.String()))
	h := newExecutionHandle(s.SessionID, inferenceID, prompt, cancel)
	s.active = h
	s.mu.Unlock()

	log.Debug().
		Str("session_id", s.SessionID).
		Str("inference_id", inferenceID.String()).
		Bool("agent", agent).
		Msg("session: starting exchange")

	go func() {
		var (
			reply *Reply
			turns conversation.Conversation
			err   error
		)
		if agent {
			reply, turns, err = s.runAgent(runCtx, h, history)
		} else {
			reply, turns, err = s.runChat(runCtx, h, history)
		}
		cancel()

		s.mu.Lock()
		if err == nil {
			s.history = append(s.history, turns...)
			s.usage = s.usage.Add(reply.Usage)
		}
		s.active = nil
		s.mu.Unlock()

		if err == nil {
			s.metrics.RecordTokens(runCtx, reply.Usage.Prompt, reply.Usage.Completion)
		}
		h.setResult(reply, err)
	}()

	return h, nil
}

// Interrupt stops the active exchange and keeps what was generated so far.
// Engines that cannot be interrupted are cancelled through the context.
func (s *Session) Interrupt() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.markInterrupted()
	if i, ok := s.engine.(inference.Interruptible); ok && i.Interrupt() {
		return nil
	}
	h.Cancel()
	return nil
}

// CancelActive cancels the active exchange, discarding its output.
func (s *Session) CancelActive() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}

func (s *Session) publish(e events.Event) {
	if err := s.sink.PublishEvent(e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("session: failed to publish event")
	}
}

// interruption reports whether err ended the exchange because of Interrupt,
// and the text generated until then.
func (s *Session) interruption(h *ExecutionHandle, err error) (string, bool) {
	if partial, ok := inference.PartialText(err); ok {
		if partial == "" {
			partial = h.partialText()
		}
		return partial, true
	}
	if h.wasInterrupted() && errors.Is(err, context.Canceled) {
		return h.partialText(), true
	}
	return "", false
}

func (s *Session) runChat(ctx context.Context, h *ExecutionHandle, history conversation.Conversation) (*Reply, conversation.Conversation, error) {
	user := conversation.NewUserMessage(h.Prompt)
	sent := append(history, user)
	if s.systemPrompt != "" {
		sent = sent.WithSystemPrompt(s.systemPrompt)
	}
	meta := events.Metadata{RunID: h.InferenceID, Step: 1, Model: s.Model()}
	s.publish(events.NewStartEvent(meta, h.Prompt))

	var text string
	var err error
	if se, ok := s.engine.(inference.StreamingEngine); ok && s.options.Stream {
		text, err = se.RunInferenceStream(ctx, sent, s.options, func(delta string) error {
			completion := h.appendPartial(delta)
			s.publish(events.NewPartialCompletionEvent(meta, delta, completion))
			return nil
		})
	} else {
		text, err = s.engine.RunInference(ctx, sent, s.options)
	}

	if err != nil {
		partial, ok := s.interruption(h, err)
		if !ok {
			s.publish(events.NewErrorEvent(meta, err))
			return nil, nil, errors.Wrap(err, "chat inference failed")
		}
		return s.interrupted(h, meta, sent, len(sent), partial, false)
	}

	s.publish(events.NewFinalEvent(meta, text, events.OutcomeReply))
	assistant := conversation.NewAssistantMessage(text)
	return &Reply{
		InferenceID: h.InferenceID,
		Text:        text,
		Usage:       tokens.Measure(s.counter, sent, text),
	}, conversation.Conversation{user, assistant}, nil
}

func (s *Session) runAgent(ctx context.Context, h *ExecutionHandle, history conversation.Conversation) (*Reply, conversation.Conversation, error) {
	user := conversation.NewUserMessage(h.Prompt)
	res, err := s.loop.RunToCompletion(ctx, react.Request{
		Question: h.Prompt,
		History:  history,
		RunID:    h.InferenceID,
	})
	if err != nil {
		partial, ok := s.interruption(h, err)
		if !ok {
			return nil, nil, err
		}
		meta := events.Metadata{RunID: h.InferenceID, Step: res.Steps, Model: s.Model()}
		reply, turns, err := s.interrupted(h, meta, res.Messages, agentPromptLen(history), partial, true)
		if reply != nil {
			reply.Steps = res.Steps
		}
		return reply, turns, err
	}

	return &Reply{
		InferenceID: h.InferenceID,
		Text:        res.Answer,
		Agent:       true,
		Outcome:     res.Outcome,
		Steps:       res.Steps,
		Usage:       exchangeUsage(s.counter, res.Messages, agentPromptLen(history)),
	}, conversation.Conversation{user, conversation.NewAssistantMessage(res.Answer)}, nil
}

// interrupted builds the reply of an interrupted exchange. The partial text,
// when there is any, becomes the assistant turn.
func (s *Session) interrupted(
	h *ExecutionHandle,
	meta events.Metadata,
	transcript conversation.Conversation,
	promptLen int,
	partial string,
	agent bool,
) (*Reply, conversation.Conversation, error) {
	log.Debug().
		Str("session_id", s.SessionID).
		Str("inference_id", h.InferenceID.String()).
		Int("partial_length", len(partial)).
		Msg("session: exchange interrupted")
	s.publish(events.NewInterruptEvent(meta, partial))

	turns := conversation.Conversation{conversation.NewUserMessage(h.Prompt)}
	usage := exchangeUsage(s.counter, transcript, promptLen)
	if partial != "" {
		turns = append(turns, conversation.NewAssistantMessage(partial))
		usage.Completion += s.counter.Count(partial)
	}
	return &Reply{
		InferenceID: h.InferenceID,
		Text:        partial,
		Agent:       agent,
		Interrupted: true,
		Usage:       usage,
	}, turns, nil
}

// agentPromptLen is the length of the conversation an agent run starts
// from: the system prompt, the history and the question.
func agentPromptLen(history conversation.Conversation) int {
	return len(history) + 2
}

// exchangeUsage measures one exchange. The first promptLen messages of the
// transcript were sent as they are, earlier assistant turns included. After
// them, assistant turns were generated during the exchange and every other
// turn (observations) was fed back as prompt. Agent runs resend the growing
// transcript at every step, so this underestimates the prompt side of
// multi-step runs.
func exchangeUsage(c tokens.Counter, transcript conversation.Conversation, promptLen int) tokens.Usage {
	promptLen = min(max(promptLen, 0), len(transcript))
	u := tokens.Usage{Prompt: tokens.CountConversation(c, transcript[:promptLen])}
	for _, m := range transcript[promptLen:] {
		n := c.Count(m.Content)
		if m.Role == conversation.RoleAssistant {
			u.Completion += n
		} else {
			u.Prompt += n
		}
	}
	return u
}
