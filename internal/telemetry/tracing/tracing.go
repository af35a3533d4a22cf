// Package tracing wraps OpenTelemetry's SDK tracer provider behind a small
// facade so the rest of the pipeline only depends on a Start/End span shape,
// not the full otel API surface.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer starts spans for a named service. The exporter is left unset (no
// OTLP endpoint is in scope for this core) and no span processor is
// registered, so finished spans are not kept anywhere; the provider still
// assigns trace/span ids, which remain available for log correlation.
type Tracer struct {
	tracer oteltrace.Tracer
}

// New builds a Tracer and registers it as the global tracer provider.
func New(serviceName string) *Tracer {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	return &Tracer{tracer: tp.Tracer(serviceName)}
}

// StartRun starts the root span for one scrape run, tagged with run_id.
func (t *Tracer) StartRun(ctx context.Context, runID string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, "scrape_run", oteltrace.WithAttributes(
		attribute.String("run_id", runID),
	))
}

// ExtractIDs returns the active span's trace/span ids, or empty strings if
// no span is active. Used by the logging package to stamp correlation ids
// onto every log line.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
