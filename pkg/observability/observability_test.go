package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig("test")
	cfg.Output = &buf

	shutdown, err := InitTracing(context.Background(), cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "columnar.write", "users", attribute.Int("rows", 3))
	EndSpan(span, errors.New("disk full"))

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "columnar.write")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "target-parquet")
}

func TestTracerBeforeInit(t *testing.T) {
	_, span := StartSpan(context.Background(), "noop", "")
	assert.NotPanics(t, func() { EndSpan(span, nil) })
}

func TestEndSpanRecordsDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	_, span := StartSpan(context.Background(), "pipeline.flush", "users")
	EndSpan(span, nil)
	_, span = StartSpan(context.Background(), "pipeline.flush", "users")
	EndSpan(span, errors.New("upload failed"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, SpanDurationMetric, m.Name)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)

	statuses := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		op, _ := dp.Attributes.Value("operation")
		assert.Equal(t, "pipeline.flush", op.AsString())
		st, _ := dp.Attributes.Value("status")
		statuses[st.AsString()] += dp.Count
	}
	assert.Equal(t, map[string]uint64{"ok": 1, "error": 1}, statuses)
}
