// Package observe holds the OpenTelemetry instruments used by the agent loop
// and the chat session. Tests should build their own Metrics from a
// ManualReader-backed provider instead of using DefaultMetrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/go-go-golems/localmind"

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// InferenceDuration tracks engine call latency, attributes: model, status.
	InferenceDuration metric.Float64Histogram
	// ToolDuration tracks tool execution latency, attribute: tool.
	ToolDuration metric.Float64Histogram
	// ToolCalls counts dispatched actions, attributes: tool, status
	// (ok, error, not_found).
	ToolCalls metric.Int64Counter
	// Runs counts finished runs, attribute: outcome.
	Runs metric.Int64Counter
	// Steps records how many inference steps a run took.
	Steps metric.Int64Histogram
	// Tokens counts estimated tokens, attribute: kind (prompt, completion).
	Tokens metric.Int64Counter
}

// latencyBuckets in seconds; local models are slow.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InferenceDuration, err = m.Float64Histogram("localmind.inference.duration",
		metric.WithDescription("Latency of model inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("localmind.tool.duration",
		metric.WithDescription("Latency of tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("localmind.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("localmind.runs",
		metric.WithDescription("Total agent runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Steps, err = m.Int64Histogram("localmind.run.steps",
		metric.WithDescription("Inference steps per agent run."),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 8, 13, 21),
	); err != nil {
		return nil, err
	}
	if met.Tokens, err = m.Int64Counter("localmind.tokens",
		metric.WithDescription("Estimated tokens by kind."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a Metrics built on the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// The Record helpers accept a nil receiver so callers can leave metrics off.

func (m *Metrics) RecordInference(ctx context.Context, model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
	if status != "not_found" {
		m.ToolDuration.Record(ctx, d.Seconds(),
			metric.WithAttributes(attribute.String("tool", tool)),
		)
	}
}

func (m *Metrics) RecordRun(ctx context.Context, outcome string, steps int) {
	if m == nil {
		return
	}
	m.Runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.Steps.Record(ctx, int64(steps))
}

func (m *Metrics) RecordTokens(ctx context.Context, prompt, completion int) {
	if m == nil {
		return
	}
	m.Tokens.Add(ctx, int64(prompt), metric.WithAttributes(attribute.String("kind", "prompt")))
	m.Tokens.Add(ctx, int64(completion), metric.WithAttributes(attribute.String("kind", "completion")))
}
