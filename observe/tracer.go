package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ModuleMeta describes one module run for telemetry purposes.
type ModuleMeta struct {
	ID       string // module identifier, e.g. "interpretation" (required)
	Name     string // display name (optional)
	EntityID string // entity the run is scoped to (optional)
	Cached   bool   // whether the module is eligible for caching
}

// SpanName returns the deterministic span name: module.run.<id>.
func (m ModuleMeta) SpanName() string {
	return "module.run." + m.ID
}

func (m ModuleMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("module.id", m.ID),
		attribute.Bool("module.cached", m.Cached),
	}
	if m.Name != "" {
		attrs = append(attrs, attribute.String("module.name", m.Name))
	}
	if m.EntityID != "" {
		attrs = append(attrs, attribute.String("entity.id", m.EntityID))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with module-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta ModuleMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta ModuleMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("module.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("module.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
