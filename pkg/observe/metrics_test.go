package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	require.NotNil(t, met, name)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not a sum", name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attributeKey(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "Calculator", "ok", 10*time.Millisecond)
	m.RecordToolCall(ctx, "Calculator", "ok", 20*time.Millisecond)
	m.RecordToolCall(ctx, "Weather", "not_found", 0)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, rm, "localmind.tool.calls", "status", "ok"))
	assert.Equal(t, int64(1), sumFor(t, rm, "localmind.tool.calls", "status", "not_found"))

	met := findMetric(rm, "localmind.tool.duration")
	require.NotNil(t, met)
	hist, ok := met.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestRecordRunAndInference(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRun(ctx, "answer", 2)
	m.RecordRun(ctx, "exhausted", 5)
	m.RecordInference(ctx, "llama3", "ok", time.Second)
	m.RecordTokens(ctx, 12, 3)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, rm, "localmind.runs", "outcome", "exhausted"))
	assert.Equal(t, int64(12), sumFor(t, rm, "localmind.tokens", "kind", "prompt"))
	assert.Equal(t, int64(3), sumFor(t, rm, "localmind.tokens", "kind", "completion"))
	assert.NotNil(t, findMetric(rm, "localmind.inference.duration"))
	assert.NotNil(t, findMetric(rm, "localmind.run.steps"))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun(context.Background(), "answer", 1)
		m.RecordToolCall(context.Background(), "x", "ok", 0)
		m.RecordInference(context.Background(), "m", "ok", 0)
		m.RecordTokens(context.Background(), 1, 1)
	})
}
