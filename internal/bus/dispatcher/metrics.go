package dispatcher

import (
	"context"
	"time"

	"chanbus/internal/bus"
	"chanbus/internal/bus/metrics"
)

// MetricsResolver wraps a bus.Resolver with metrics collection. It counts every
// dispatched or dropped event and times each handler it hands out.
type MetricsResolver struct {
	resolver bus.Resolver
	registry *metrics.Registry
}

// NewMetricsResolver creates a new instrumented resolver
func NewMetricsResolver(resolver bus.Resolver, registry *metrics.Registry) bus.Resolver {
	return &MetricsResolver{
		resolver: resolver,
		registry: registry,
	}
}

// Resolve implements bus.Resolver.Resolve with metrics collection
func (r *MetricsResolver) Resolve(ctx context.Context, kind bus.Kind) []bus.Handler {
	handlers := r.resolver.Resolve(ctx, kind)
	r.registry.RecordDispatch(kind.String(), len(handlers))

	wrapped := make([]bus.Handler, len(handlers))
	for i, h := range handlers {
		wrapped[i] = &metricsHandler{
			handler:  h,
			name:     bus.HandlerName(h),
			registry: r.registry,
		}
	}

	return wrapped
}

type metricsHandler struct {
	handler  bus.Handler
	name     string
	registry *metrics.Registry
}

func (h *metricsHandler) Handle(ctx context.Context, evt bus.Event) error {
	start := time.Now()

	err := call(ctx, h.handler, evt)

	h.registry.RecordHandler(evt.Kind().String(), h.name, time.Since(start), metrics.Status(err))

	return err
}

func (h *metricsHandler) Name() string {
	return h.name
}
