package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart       EventType = "start"
	EventTypeThought     EventType = "thought"
	EventTypeAction      EventType = "action"
	EventTypeObservation EventType = "observation"
	EventTypeFinal       EventType = "final"
	EventTypeError       EventType = "error"

	// Emitted by plain chat sessions, not by the agent loop.
	EventTypePartialCompletion EventType = "partial"
	EventTypeInterrupt         EventType = "interrupt"
)

// Outcome tells how a run terminated.
type Outcome string

const (
	// OutcomeAnswer means the model emitted "Final Answer:".
	OutcomeAnswer Outcome = "answer"
	// OutcomeReply means the model answered without following the protocol.
	OutcomeReply Outcome = "reply"
	// OutcomeExhausted means the step budget ran out.
	OutcomeExhausted Outcome = "exhausted"
)

// Metadata identifies where an event comes from.
type Metadata struct {
	RunID uuid.UUID `json:"run_id" yaml:"run_id"`
	Step  int       `json:"step" yaml:"step"`
	Model string    `json:"model,omitempty" yaml:"model,omitempty"`
	Time  time.Time `json:"time" yaml:"time"`
}

func (m Metadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", m.RunID.String())
	e.Int("step", m.Step)
	if m.Model != "" {
		e.Str("model", m.Model)
	}
}

// Event is a single observable fact about a run. Which fields are set depends
// on Type:
//
//   - start: Text (the question)
//   - thought: Text
//   - action: Tool, Input, Ambiguous
//   - observation: Tool, Text (the full "Observation: ..." message)
//   - final: Text, Outcome
//   - error: Error
//   - partial: Text (delta), Completion (text so far)
//   - interrupt: Completion
type Event struct {
	Type       EventType `json:"type" yaml:"type"`
	Meta       Metadata  `json:"meta" yaml:"meta"`
	Text       string    `json:"text,omitempty" yaml:"text,omitempty"`
	Completion string    `json:"completion,omitempty" yaml:"completion,omitempty"`
	Tool       string    `json:"tool,omitempty" yaml:"tool,omitempty"`
	Input      string    `json:"input,omitempty" yaml:"input,omitempty"`
	Ambiguous  bool      `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
	Outcome    Outcome   `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type))
	ev.Object("meta", e.Meta)
	if e.Tool != "" {
		ev.Str("tool", e.Tool)
	}
	if e.Outcome != "" {
		ev.Str("outcome", string(e.Outcome))
	}
	if e.Ambiguous {
		ev.Bool("ambiguous", true)
	}
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

func newEvent(t EventType, meta Metadata) Event {
	if meta.Time.IsZero() {
		meta.Time = time.Now()
	}
	return Event{Type: t, Meta: meta}
}

func NewStartEvent(meta Metadata, question string) Event {
	e := newEvent(EventTypeStart, meta)
	e.Text = question
	return e
}

func NewThoughtEvent(meta Metadata, thought string) Event {
	e := newEvent(EventTypeThought, meta)
	e.Text = thought
	return e
}

func NewActionEvent(meta Metadata, tool, input string, ambiguous bool) Event {
	e := newEvent(EventTypeAction, meta)
	e.Tool = tool
	e.Input = input
	e.Ambiguous = ambiguous
	return e
}

func NewObservationEvent(meta Metadata, tool, observation string) Event {
	e := newEvent(EventTypeObservation, meta)
	e.Tool = tool
	e.Text = observation
	return e
}

func NewFinalEvent(meta Metadata, text string, outcome Outcome) Event {
	e := newEvent(EventTypeFinal, meta)
	e.Text = text
	e.Outcome = outcome
	return e
}

func NewErrorEvent(meta Metadata, err error) Event {
	e := newEvent(EventTypeError, meta)
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func NewPartialCompletionEvent(meta Metadata, delta, completion string) Event {
	e := newEvent(EventTypePartialCompletion, meta)
	e.Text = delta
	e.Completion = completion
	return e
}

func NewInterruptEvent(meta Metadata, completion string) Event {
	e := newEvent(EventTypeInterrupt, meta)
	e.Completion = completion
	return e
}

// NewEventFromJson decodes an event published by a WatermillSink.
func NewEventFromJson(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "could not unmarshal event")
	}
	if e.Type == "" {
		return Event{}, errors.New("event has no type")
	}
	return e, nil
}
