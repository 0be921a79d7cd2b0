package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Scope is the instrumentation scope spans are reported under.
const Scope = "casereview/cases"

type otelTracer struct {
	tracer trace.Tracer
}

// Option picks where NewOTel takes its spans from.
type Option func(*otelTracer)

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *otelTracer) { o.tracer = tp.Tracer(Scope) }
}

// NewOTel returns a Tracer backed by OpenTelemetry, the global provider
// unless WithTracerProvider says otherwise.
func NewOTel(opts ...Option) Tracer {
	t := &otelTracer{tracer: otel.Tracer(Scope)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, otelSpan{span}
}

type otelSpan struct {
	trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.Span.RecordError(err)
		s.Span.SetStatus(codes.Error, err.Error())
	}
	s.Span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.Span.SetAttributes(attrs...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.Span.AddEvent(name, trace.WithAttributes(attrs...))
}
