package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metadata keys set on every message published by a WatermillSink.
const (
	MetadataRunID     = "run_id"
	MetadataEventType = "event_type"
)

type runIDKey struct{}

// ContextWithRunID attaches the run a published message belongs to.
func ContextWithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// runIDFromContext falls back to a generated "gen_" ID for messages published
// outside a run, so they can still be grouped but never pass for a real run.
func runIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(uuid.UUID); ok && id != uuid.Nil {
		return id.String()
	}
	log.Ctx(ctx).Debug().Msg("events: message published outside a run")
	return "gen_" + shortuuid.New()
}

// runPublisher stamps outgoing messages with the run ID of their context,
// leaving messages that already carry one alone.
type runPublisher struct {
	message.Publisher
}

func (p runPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.Metadata.Get(MetadataRunID) == "" {
			msg.Metadata.Set(MetadataRunID, runIDFromContext(msg.Context()))
		}
	}
	return p.Publisher.Publish(topic, messages...)
}

// watermillLogger routes the router's and pubsub's logging into zerolog.
// Info is demoted to debug, the router logs every handler start and stop.
type watermillLogger struct {
	logger zerolog.Logger
}

func NewWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return watermillLogger{logger: logger.With().Str("component", "events").Logger()}
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{logger: w.logger.With().Fields(map[string]any(fields)).Logger()}
}
