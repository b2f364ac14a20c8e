package queue

import "chanbus/internal/bus/metrics"

// WithMetrics records queue creation and exposes the depth of every queue.
// It panics if a depth gauge cannot be registered, as prometheus.MustRegister does.
func WithMetrics(registry *metrics.Registry) Option {
	return WithOnCreate(func(q *Queue) {
		registry.RecordQueueCreated(q.Kind().String())
		err := registry.ObserveQueueDepth(q.Kind().String(), func() float64 {
			return float64(q.Len())
		})
		if err != nil {
			panic(err)
		}
	})
}
