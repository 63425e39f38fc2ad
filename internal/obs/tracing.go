package obs

import (
	"context"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/edgecore/core-runtime/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// MaybeInitTracing optionally initializes a global tracer provider with sampling and propagation.
func MaybeInitTracing(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint == "" {
		return nil, nil
	}

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Observability.Tracing.Endpoint),
		otlptracehttp.WithInsecure(),
	))
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("edgecore-core-runtime"),
		semconv.ServiceVersionKey.String("1.0.0"),
		semconv.HostNameKey.String(hostname),
		attribute.String("environment", cfg.Observability.Tracing.Environment),
	)

	var sampler sdktrace.Sampler
	switch cfg.Observability.Tracing.SamplingStrategy {
	case "always":
		sampler = sdktrace.AlwaysSample()
	case "never":
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.Observability.Tracing.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// SpanForJobRun starts a span around one scheduler pass over a named
// job, the unit spec.md §2.4 calls out as "one [span] per job
// admission/run".
func SpanForJobRun(ctx context.Context, jobName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("scheduler")
	return tracer.Start(ctx, "scheduler.do_jobs",
		trace.WithAttributes(attribute.String("job.name", jobName)),
	)
}

// SpanForAssetDownload starts a span around one AssetDownloadJob
// attempt.
func SpanForAssetDownload(ctx context.Context, name, version, assetType string) (context.Context, trace.Span) {
	tracer := otel.Tracer("asset")
	return tracer.Start(ctx, "asset.download",
		trace.WithAttributes(
			attribute.String("asset.name", name),
			attribute.String("asset.version", version),
			attribute.String("asset.type", assetType),
		),
	)
}

// SpanForAssetLoad starts a span around one AssetLoadJob's Process call.
func SpanForAssetLoad(ctx context.Context, name, version, assetType string) (context.Context, trace.Span) {
	tracer := otel.Tracer("asset")
	return tracer.Start(ctx, "asset.load",
		trace.WithAttributes(
			attribute.String("asset.name", name),
			attribute.String("asset.version", version),
			attribute.String("asset.type", assetType),
		),
	)
}

// RedactUserEvent walks an arbitrary user-event payload through cfg's
// JSONPath attribute allowlist and returns only the fields it names, as
// span attributes safe to export. When cfg.RedactSensitive is false or
// the allowlist is empty, every payload field is returned unfiltered.
// Grounded on the teacher's tracing
// RedactSensitive/AttributeAllowlist fields, which the teacher's own
// code never consumed; add_user_event payloads are arbitrary
// script-supplied JSON (spec.md §4.8), so this is where that allowlist
// actually gets exercised.
func RedactUserEvent(cfg config.TracingConfig, payload map[string]any) []attribute.KeyValue {
	if !cfg.RedactSensitive || len(cfg.AttributeAllowlist) == 0 {
		attrs := make([]attribute.KeyValue, 0, len(payload))
		for k, v := range payload {
			attrs = append(attrs, KeyValue(k, v))
		}
		return attrs
	}

	var attrs []attribute.KeyValue
	for _, expr := range cfg.AttributeAllowlist {
		v, err := jsonpath.Get(expr, map[string]any(payload))
		if err != nil {
			continue
		}
		attrs = append(attrs, KeyValue(expr, v))
	}
	return attrs
}

// RecordError records an error on the span if one exists in the context.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks the span as successful.
func SetSpanSuccess(ctx context.Context) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetStatus(codes.Ok, "success")
	}
}

// ExtractTraceContext extracts trace context from a map.
func ExtractTraceContext(ctx context.Context, carrier map[string]string) context.Context {
	prop := otel.GetTextMapPropagator()
	return prop.Extract(ctx, propagation.MapCarrier(carrier))
}

// InjectTraceContext injects trace context into a map.
func InjectTraceContext(ctx context.Context) map[string]string {
	carrier := make(map[string]string)
	prop := otel.GetTextMapPropagator()
	prop.Inject(ctx, propagation.MapCarrier(carrier))
	return carrier
}

// GetTraceAndSpanID extracts the current trace and span IDs from context.
func GetTraceAndSpanID(ctx context.Context) (traceID string, spanID string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		sc := span.SpanContext()
		if sc.IsValid() {
			return sc.TraceID().String(), sc.SpanID().String()
		}
	}
	return "", ""
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// AddSpanAttributes adds attributes to the current span.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// TracerShutdown gracefully shuts down the tracer provider.
func TracerShutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// KeyValue creates an attribute key-value pair for use in spans and events.
func KeyValue(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
