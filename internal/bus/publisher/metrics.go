package publisher

import (
	"context"
	"time"

	"chanbus/internal/bus"
	"chanbus/internal/bus/metrics"
)

// MetricsPublisher wraps a bus.Publisher with metrics collection
type MetricsPublisher struct {
	publisher bus.Publisher
	registry  *metrics.Registry
}

// NewMetricsPublisher creates a new instrumented publisher
func NewMetricsPublisher(publisher bus.Publisher, registry *metrics.Registry) bus.Publisher {
	return &MetricsPublisher{
		publisher: publisher,
		registry:  registry,
	}
}

// Publish implements bus.Publisher.Publish with metrics collection
func (p *MetricsPublisher) Publish(ctx context.Context, evt bus.Event) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, evt)

	p.registry.RecordPublish(evt.Kind().String(), time.Since(start), metrics.Status(err))

	return err
}
