package publisher

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"chanbus/internal/bus"
	"chanbus/internal/bus/tracing"
)

// TracedPublisher wraps a bus.Publisher with distributed tracing
// Layer order: TracedPublisher -> MetricsPublisher -> AuditPublisher -> Publisher (real thing)
type TracedPublisher struct {
	publisher bus.Publisher
	tracer    *tracing.Tracer
}

// NewTracedPublisher creates a new traced publisher that wraps a metrics publisher
func NewTracedPublisher(publisher bus.Publisher, tracer *tracing.Tracer) bus.Publisher {
	return &TracedPublisher{
		publisher: publisher,
		tracer:    tracer,
	}
}

// Publish implements bus.Publisher.Publish with distributed tracing
func (p *TracedPublisher) Publish(ctx context.Context, evt bus.Event) error {
	ctx, span := p.tracer.StartSpan(ctx, "publisher.publish", trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(p.tracer.EventAttributes(evt)...)

	err := p.publisher.Publish(ctx, evt)

	p.tracer.End(ctx, span, err)

	return err
}
