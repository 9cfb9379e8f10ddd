package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// Sink is a destination for run events. PublishEvent is called synchronously
// from the run, so a slow sink slows the run down.
type Sink interface {
	PublishEvent(event Event) error
}

// NullSink discards all events.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(event Event) error {
	return nil
}

var _ Sink = (*NullSink)(nil)

// WatermillSink publishes events as JSON messages to a watermill Publisher.
// Messages carry the run ID and event type as metadata.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: runPublisher{Publisher: publisher},
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventType, string(event.Type))
	msg.SetContext(ContextWithRunID(msg.Context(), event.Meta.RunID))

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type)).Msg("Published event to watermill")
	return nil
}

var _ Sink = (*WatermillSink)(nil)

// Collector keeps every event in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) PublishEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Types returns the event types in publishing order.
func (c *Collector) Types() []EventType {
	var ret []EventType
	for _, e := range c.Events() {
		ret = append(ret, e.Type)
	}
	return ret
}

var _ Sink = (*Collector)(nil)

// MultiSink fans an event out to several sinks and returns the first error.
type MultiSink []Sink

func (m MultiSink) PublishEvent(event Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.PublishEvent(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Sink = MultiSink(nil)
