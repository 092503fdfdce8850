package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/target-parquet"

// SpanDurationMetric is the histogram every ended span records into.
const SpanDurationMetric = "span.duration"

// Tracer returns the tracer used by target-parquet components. Until
// InitTracing runs it is the global no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns the meter used for span metrics. It is a no-op until a
// meter provider is installed with otel.SetMeterProvider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Span is a trace span that also records its duration when ended.
type Span struct {
	trace.Span
	name      string
	stream    string
	startTime time.Time
}

// StartSpan starts a span tagged with the stream it works on.
func StartSpan(ctx context.Context, name, stream string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	if stream != "" {
		attrs = append(attrs, attribute.String("stream", stream))
	}
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{Span: span, name: name, stream: stream, startTime: time.Now()}
}

// EndSpan records err on span, if any, records the span duration and ends
// it.
func EndSpan(span *Span, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if hist, herr := Meter().Float64Histogram(SpanDurationMetric,
		metric.WithDescription("Duration of traced operations"),
		metric.WithUnit("s"),
	); herr == nil {
		attrs := []attribute.KeyValue{
			attribute.String("operation", span.name),
			attribute.String("status", status),
		}
		if span.stream != "" {
			attrs = append(attrs, attribute.String("stream", span.stream))
		}
		hist.Record(context.Background(), time.Since(span.startTime).Seconds(), metric.WithAttributes(attrs...))
	}

	span.End()
}
