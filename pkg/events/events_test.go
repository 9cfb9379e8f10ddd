package events

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishesJSON(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	msgs, err := pubSub.Subscribe(context.Background(), "runs")
	require.NoError(t, err)

	runID := uuid.New()
	sink := NewWatermillSink(pubSub, "runs")
	require.NoError(t, sink.PublishEvent(NewActionEvent(Metadata{RunID: runID, Step: 2}, "Calculator", `{"expression":"2+2"}`, false)))

	select {
	case msg := <-msgs:
		msg.Ack()
		e, err := NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, EventTypeAction, e.Type)
		assert.Equal(t, "Calculator", e.Tool)
		assert.Equal(t, runID, e.Meta.RunID)
		assert.Equal(t, 2, e.Meta.Step)
		assert.Equal(t, runID.String(), msg.Metadata.Get(MetadataRunID))
		assert.Equal(t, "action", msg.Metadata.Get(MetadataEventType))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNewEventFromJsonRejectsUntyped(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{"text": "x"}`))
	require.Error(t, err)

	_, err = NewEventFromJson([]byte(`not json`))
	require.Error(t, err)
}

func TestCollectorAndMultiSink(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	sink := MultiSink{a, NewNullSink(), b}

	meta := Metadata{RunID: uuid.New()}
	require.NoError(t, sink.PublishEvent(NewThoughtEvent(meta, "hmm")))
	require.NoError(t, sink.PublishEvent(NewFinalEvent(meta, "42", OutcomeAnswer)))

	assert.Equal(t, []EventType{EventTypeThought, EventTypeFinal}, a.Types())
	assert.Equal(t, a.Events(), b.Events())
	assert.False(t, a.Events()[0].Meta.Time.IsZero())
}

func TestPrintEvent(t *testing.T) {
	meta := Metadata{RunID: uuid.New()}
	buf := &bytes.Buffer{}

	require.NoError(t, PrintEvent(buf, NewThoughtEvent(meta, "I should add")))
	require.NoError(t, PrintEvent(buf, NewActionEvent(meta, "Calculator", `"2+2"`, true)))
	require.NoError(t, PrintEvent(buf, NewObservationEvent(meta, "Calculator", "Observation: 4")))
	require.NoError(t, PrintEvent(buf, NewFinalEvent(meta, "4", OutcomeAnswer)))

	assert.Equal(t, "Thought: I should add\n"+
		"Action: Calculator (ambiguous)\nAction Input: \"2+2\"\n"+
		"Observation: 4\n"+
		"[answer] 4\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintEvent(buf, NewThoughtEvent(meta, "Thought: already marked")))
	assert.Equal(t, "Thought: already marked\n", buf.String())
}

func TestEventRouterDeliversToHandler(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	done := make(chan struct{})
	printer := StepPrinterFunc(buf)
	router.AddHandler("printer", TopicRuns, func(msg *message.Message) error {
		defer close(done)
		return printer(msg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	require.NoError(t, router.Sink(TopicRuns).PublishEvent(NewThoughtEvent(Metadata{RunID: uuid.New()}, "thinking")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Equal(t, "Thought: thinking\n", buf.String())
	require.NoError(t, router.Close())
}
