package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Publisher metrics
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec

	// Queue metrics
	queuesCreated *prometheus.CounterVec

	// Dispatcher metrics
	dispatchTotal   *prometheus.CounterVec
	handlerTotal    *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge

	depthMu sync.Mutex
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanbus_publish_total",
				Help: "Total number of publish operations",
			},
			[]string{"kind", "status"}, // status: success, closed, error
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chanbus_publish_duration_seconds",
				Help:    "Time spent publishing events",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"kind"},
		),

		queuesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanbus_queues_created_total",
				Help: "Total number of per-kind queues created",
			},
			[]string{"kind"},
		),

		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanbus_dispatch_total",
				Help: "Total number of dequeued events by outcome",
			},
			[]string{"kind", "status"}, // status: dispatched, dropped
		),

		handlerTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chanbus_handler_total",
				Help: "Total number of subscriber invocations",
			},
			[]string{"kind", "handler", "status"}, // status: success, error, canceled
		),

		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chanbus_handler_duration_seconds",
				Help:    "Time spent in subscriber invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "handler"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chanbus_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chanbus_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.queuesCreated,
		r.dispatchTotal,
		r.handlerTotal,
		r.handlerDuration,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordPublish records a publish operation
func (r *Registry) RecordPublish(kind string, duration time.Duration, status string) {
	r.publishTotal.WithLabelValues(kind, status).Inc()
	r.publishDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordQueueCreated records the lazy creation of a kind's queue
func (r *Registry) RecordQueueCreated(kind string) {
	r.queuesCreated.WithLabelValues(kind).Inc()
}

// ObserveQueueDepth exposes the current depth of a kind's queue as a gauge.
// Observing a kind again replaces its gauge, so the depth always follows the
// most recently created queue for that kind.
func (r *Registry) ObserveQueueDepth(kind string, depth func() float64) error {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "chanbus_queue_depth",
			Help:        "Number of events waiting in a kind's queue",
			ConstLabels: prometheus.Labels{"kind": kind},
		},
		depth,
	)

	r.depthMu.Lock()
	defer r.depthMu.Unlock()

	err := r.registry.Register(gauge)

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		r.registry.Unregister(already.ExistingCollector)
		err = r.registry.Register(gauge)
	}
	if err != nil {
		return fmt.Errorf("failed to register queue depth for %s: %w", kind, err)
	}

	return nil
}

// RecordDispatch records the outcome of a dequeued event
func (r *Registry) RecordDispatch(kind string, subscribers int) {
	status := "dispatched"
	if subscribers == 0 {
		status = "dropped"
	}

	r.dispatchTotal.WithLabelValues(kind, status).Inc()
}

// RecordHandler records a subscriber invocation
func (r *Registry) RecordHandler(kind, handler string, duration time.Duration, status string) {
	r.handlerTotal.WithLabelValues(kind, handler, status).Inc()
	r.handlerDuration.WithLabelValues(kind, handler).Observe(duration.Seconds())
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}
