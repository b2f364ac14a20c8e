package dispatcher

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"chanbus/internal/bus"
	"chanbus/internal/bus/tracing"
)

// TracedResolver wraps a bus.Resolver so that every handler invocation runs in its
// own consumer span.
// Layer order: TracedResolver -> MetricsResolver -> subscriber registry
type TracedResolver struct {
	resolver bus.Resolver
	tracer   *tracing.Tracer
}

// NewTracedResolver creates a new traced resolver
func NewTracedResolver(resolver bus.Resolver, tracer *tracing.Tracer) bus.Resolver {
	return &TracedResolver{
		resolver: resolver,
		tracer:   tracer,
	}
}

// Resolve implements bus.Resolver.Resolve with distributed tracing
func (r *TracedResolver) Resolve(ctx context.Context, kind bus.Kind) []bus.Handler {
	handlers := r.resolver.Resolve(ctx, kind)

	traced := make([]bus.Handler, len(handlers))
	for i, h := range handlers {
		traced[i] = &tracedHandler{
			handler: h,
			name:    bus.HandlerName(h),
			tracer:  r.tracer,
		}
	}

	return traced
}

type tracedHandler struct {
	handler bus.Handler
	name    string
	tracer  *tracing.Tracer
}

func (h *tracedHandler) Handle(ctx context.Context, evt bus.Event) error {
	ctx, span := h.tracer.StartSpan(ctx, "subscriber.handle", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(h.tracer.HandlerAttributes(evt, h.name)...)

	err := call(ctx, h.handler, evt)

	h.tracer.End(ctx, span, err)

	return err
}

func (h *tracedHandler) Name() string {
	return h.name
}
