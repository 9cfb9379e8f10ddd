package react

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/go-go-golems/localmind/pkg/conversation"
	"github.com/go-go-golems/localmind/pkg/events"
	"github.com/go-go-golems/localmind/pkg/inference"
	"github.com/go-go-golems/localmind/pkg/observe"
	"github.com/go-go-golems/localmind/pkg/prompt"
	"github.com/go-go-golems/localmind/pkg/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxSteps = 5

	// ExhaustedAnswer is the final text of a run that ran out of steps.
	ExhaustedAnswer = "Agent Loop limit reached."
)

var (
	ErrNoEngine = errors.New("react: no inference engine")
	// ErrRunConsumed is yielded when a run sequence is iterated twice.
	ErrRunConsumed = errors.New("react: run already consumed")
)

// Phase is the state of a run.
type Phase string

const (
	PhaseRunning      Phase = "RUNNING"
	PhaseToolDispatch Phase = "TOOL_DISPATCH"
	PhaseFinal        Phase = "FINAL"
	PhaseExhausted    Phase = "EXHAUSTED"
)

// State is the transient per-run state.
type State struct {
	Step     int
	Messages conversation.Conversation
	Phase    Phase
}

// Request is one question put to the loop.
//
// OnThought and OnAction are called synchronously before the tool runs, so a
// slow observer delays the run. An error returned by either aborts the run
// and is yielded to the caller.
type Request struct {
	Question string
	// History is prior conversation. A leading system message is replaced by
	// the effective system prompt.
	History conversation.Conversation
	// SystemPrompt overrides the compiled prompt when non-empty.
	SystemPrompt string
	OnThought    func(ctx context.Context, thought string) error
	OnAction     func(ctx context.Context, tool, input string) error
	// RunID identifies the run in events. A random ID is used when unset.
	RunID uuid.UUID
}

// Loop runs the Reason-Act-Observe protocol: ask the model, run the tool it
// names, feed the observation back, until it gives a final answer or the step
// budget is spent. A Loop holds no per-run state and may serve concurrent
// runs as long as its engine can.
type Loop struct {
	engine   inference.Engine
	catalog  *tools.Snapshot
	maxSteps int
	persona  string
	options  inference.Options
	sink     events.Sink
	metrics  *observe.Metrics
}

type Option func(*Loop)

// WithMaxSteps bounds the number of model calls per run. Values below 1 are
// ignored.
func WithMaxSteps(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxSteps = n
		}
	}
}

// WithPersona sets the base persona of the compiled system prompt.
func WithPersona(persona string) Option {
	return func(l *Loop) {
		l.persona = persona
	}
}

// WithOptions sets the generation parameters. Streaming is always turned off
// and the "Observation:" stop sequence is always added.
func WithOptions(opts inference.Options) Option {
	return func(l *Loop) {
		l.options = opts
	}
}

func WithEventSink(sink events.Sink) Option {
	return func(l *Loop) {
		if sink != nil {
			l.sink = sink
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// New builds a loop. The catalog is snapshotted, later registrations are not
// seen by this loop.
func New(engine inference.Engine, catalog tools.Catalog, options ...Option) (*Loop, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	l := &Loop{
		engine:   engine,
		catalog:  tools.NewSnapshot(catalog),
		maxSteps: DefaultMaxSteps,
		sink:     events.NewNullSink(),
	}
	for _, o := range options {
		o(l)
	}
	return l, nil
}

func (l *Loop) MaxSteps() int {
	return l.maxSteps
}

func (l *Loop) Catalog() tools.Catalog {
	return l.catalog
}

// SystemPrompt compiles the persona and tool catalog into the system prompt.
func (l *Loop) SystemPrompt() string {
	return prompt.CompileSystemPrompt(l.catalog, l.persona)
}

func (l *Loop) inferenceOptions() inference.Options {
	stop := []string{}
	for _, s := range l.options.Stop {
		if s != MarkerObservation {
			stop = append(stop, s)
		}
	}
	stop = append(stop, MarkerObservation)
	return l.options.WithStream(false).WithStop(stop...)
}

// Run starts a run and returns its events. The sequence yields thought,
// action and observation events as they happen and ends with exactly one
// final event, or with a non-nil error if inference or an observer failed.
// The sequence can only be iterated once; the run stops if the consumer
// stops iterating.
func (l *Loop) Run(ctx context.Context, req Request) iter.Seq2[events.Event, error] {
	var consumed atomic.Bool
	return func(yield func(events.Event, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(events.Event{}, ErrRunConsumed)
			return
		}
		r := l.newRun(req)
		r.run(ctx, yield)
	}
}

// Result summarizes a finished run.
type Result struct {
	RunID   uuid.UUID
	Answer  string
	Outcome events.Outcome
	// Steps is the number of model calls made.
	Steps    int
	Phase    Phase
	Messages conversation.Conversation
}

// RunToCompletion drains a run and returns its result.
func (l *Loop) RunToCompletion(ctx context.Context, req Request) (*Result, error) {
	r := l.newRun(req)
	var final *events.Event
	var runErr error
	r.run(ctx, func(e events.Event, err error) bool {
		if err != nil {
			runErr = err
			return false
		}
		if e.Type == events.EventTypeFinal {
			final = &e
		}
		return true
	})

	res := &Result{
		RunID:    r.meta.RunID,
		Steps:    r.calls,
		Phase:    r.state.Phase,
		Messages: r.state.Messages,
	}
	if runErr != nil {
		return res, runErr
	}
	if final == nil {
		return res, errors.New("react: run ended without a final event")
	}
	res.Answer = final.Text
	res.Outcome = final.Outcome
	return res, nil
}

type run struct {
	loop  *Loop
	req   Request
	meta  events.Metadata
	state State
	calls int
}

func (l *Loop) newRun(req Request) *run {
	runID := req.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	return &run{
		loop: l,
		req:  req,
		meta: events.Metadata{
			RunID: runID,
			Model: inference.ModelName(l.engine),
		},
	}
}

func (r *run) publish(e events.Event) {
	if err := r.loop.sink.PublishEvent(e); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("react: failed to publish event")
	}
}

func (r *run) metaForStep() events.Metadata {
	m := r.meta
	m.Step = r.state.Step + 1
	return m
}

// emit publishes e and hands it to the consumer.
func (r *run) emit(e events.Event, yield func(events.Event, error) bool) bool {
	r.publish(e)
	return yield(e, nil)
}

func (r *run) fail(ctx context.Context, err error, yield func(events.Event, error) bool) {
	r.publish(events.NewErrorEvent(r.metaForStep(), err))
	r.loop.metrics.RecordRun(ctx, "error", r.calls)
	yield(events.Event{}, err)
}

func (r *run) run(ctx context.Context, yield func(events.Event, error) bool) {
	l := r.loop
	ctx, span := observe.StartSpan(ctx, "react.run", trace.WithAttributes(
		attribute.String("run_id", r.meta.RunID.String()),
		attribute.Int("max_steps", l.maxSteps),
	))
	var spanErr error
	defer func() { observe.EndSpan(span, spanErr) }()

	systemPrompt := r.req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = l.SystemPrompt()
	}
	messages := append(r.req.History.Clone(), conversation.NewUserMessage(r.req.Question))
	r.state = State{
		Messages: messages.WithSystemPrompt(systemPrompt),
		Phase:    PhaseRunning,
	}
	r.publish(events.NewStartEvent(r.metaForStep(), r.req.Question))

	logger := log.With().Str("run_id", r.meta.RunID.String()).Logger()
	opts := l.inferenceOptions()

	for r.state.Step < l.maxSteps {
		r.state.Phase = PhaseRunning
		meta := r.metaForStep()

		content, err := r.infer(ctx, opts)
		if err != nil {
			spanErr = err
			r.fail(ctx, errors.Wrapf(err, "inference failed at step %d", meta.Step), yield)
			return
		}
		r.state.Messages = append(r.state.Messages, conversation.NewAssistantMessage(content))
		logger.Debug().Int("step", meta.Step).Str("content", content).Msg("react: model reply")

		step := Parse(content)
		switch step.Kind {
		case StepFinalAnswer:
			r.finish(ctx, meta, step.Text, events.OutcomeAnswer, yield)
			return
		case StepPlainReply:
			r.finish(ctx, meta, step.Text, events.OutcomeReply, yield)
			return
		case StepToolInvocation:
		}

		r.state.Phase = PhaseToolDispatch
		if step.Ambiguous {
			logger.Warn().Int("step", meta.Step).Str("tool", step.Tool).Msg("react: ambiguous action, using the first one")
		}

		if r.req.OnThought != nil {
			if err := r.req.OnThought(ctx, step.Thought); err != nil {
				spanErr = err
				r.fail(ctx, errors.Wrap(err, "thought observer failed"), yield)
				return
			}
		}
		if !r.emit(events.NewThoughtEvent(meta, step.Thought), yield) {
			return
		}

		if r.req.OnAction != nil {
			if err := r.req.OnAction(ctx, step.Tool, step.Input); err != nil {
				spanErr = err
				r.fail(ctx, errors.Wrap(err, "action observer failed"), yield)
				return
			}
		}
		if !r.emit(events.NewActionEvent(meta, step.Tool, step.Input, step.Ambiguous), yield) {
			return
		}

		observation := r.dispatch(ctx, step.Tool, step.Input)
		r.state.Messages = append(r.state.Messages, conversation.NewUserMessage(observation))
		if !r.emit(events.NewObservationEvent(meta, step.Tool, observation), yield) {
			return
		}

		r.state.Step++
	}

	r.state.Phase = PhaseExhausted
	logger.Warn().Int("max_steps", l.maxSteps).Msg("react: step budget exhausted")
	meta := r.meta
	meta.Step = r.state.Step
	e := events.NewFinalEvent(meta, ExhaustedAnswer, events.OutcomeExhausted)
	l.metrics.RecordRun(ctx, string(events.OutcomeExhausted), r.calls)
	r.emit(e, yield)
}

func (r *run) finish(ctx context.Context, meta events.Metadata, text string, outcome events.Outcome, yield func(events.Event, error) bool) {
	r.state.Phase = PhaseFinal
	r.loop.metrics.RecordRun(ctx, string(outcome), r.calls)
	log.Debug().Str("run_id", r.meta.RunID.String()).Str("outcome", string(outcome)).Int("steps", r.calls).Msg("react: run finished")
	r.emit(events.NewFinalEvent(meta, text, outcome), yield)
}

func (r *run) infer(ctx context.Context, opts inference.Options) (string, error) {
	ctx, span := observe.StartSpan(ctx, "react.inference", trace.WithAttributes(
		attribute.Int("step", r.state.Step+1),
	))
	start := time.Now()
	r.calls++

	content, err := r.loop.engine.RunInference(ctx, r.state.Messages, opts)

	status := "ok"
	if err != nil {
		status = "error"
	}
	r.loop.metrics.RecordInference(ctx, r.meta.Model, status, time.Since(start))
	observe.EndSpan(span, err)
	return content, err
}

// dispatch runs the named tool and renders its outcome as an observation.
// Tool failures never abort the run.
func (r *run) dispatch(ctx context.Context, name, rawInput string) string {
	ctx, span := observe.StartSpan(ctx, "react.tool", trace.WithAttributes(
		attribute.String("tool", name),
	))
	defer span.End()

	tool, ok := r.loop.catalog.Get(name)
	if !ok {
		r.loop.metrics.RecordToolCall(ctx, name, "not_found", 0)
		return fmt.Sprintf("%s Tool '%s' not found.", MarkerObservation, name)
	}

	start := time.Now()
	result, err := execute(ctx, tool, tools.ParseInput(rawInput))
	d := time.Since(start)
	if err != nil {
		span.RecordError(err)
		r.loop.metrics.RecordToolCall(ctx, name, "error", d)
		log.Debug().Err(err).Str("tool", name).Msg("react: tool failed")
		return fmt.Sprintf("%s Error executing tool: %s", MarkerObservation, err.Error())
	}
	r.loop.metrics.RecordToolCall(ctx, name, "ok", d)
	return fmt.Sprintf("%s %s", MarkerObservation, result)
}

func execute(ctx context.Context, tool tools.Tool, in tools.Input) (result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("%v", p)
		}
	}()
	return tool.Execute(ctx, in)
}
