package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"chanbus/internal/bus"
	"chanbus/internal/bus/dispatcher"
	"chanbus/internal/bus/metrics"
	"chanbus/internal/bus/publisher"
	"chanbus/internal/bus/queue"
	"chanbus/internal/bus/tracing"
	"chanbus/internal/couchbase"
	"chanbus/internal/events"
	"chanbus/internal/httpapi"
	"chanbus/internal/subscribers"
)

var (
	version   = "dev"
	buildTime = ""
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AuditEnabled    bool          `env:"AUDIT_ENABLED" envDefault:"false"`

	Metrics     metrics.ServerConfig
	Tracing     tracing.Config
	Couchbase   couchbase.Config
	Redis       httpapi.RedisConfig
	Subscribers subscribers.Config
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", level, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build(zap.AddCaller())
}

func run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer svc.close()

	return svc.run(ctx)
}

// service holds the wired components of a running bus.
type service struct {
	cfg    Config
	logger *zap.Logger

	metrics       *metrics.Registry
	metricsServer *metrics.Server
	queues        *queue.Registry
	subscribers   *subscribers.Registry
	dispatcher    *dispatcher.Dispatcher
	publisher     bus.Publisher
	router        http.Handler

	closers []func(context.Context) error
}

func newService(ctx context.Context, cfg Config, logger *zap.Logger) (_ *service, err error) {
	s := &service{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	s.metrics = metrics.NewRegistry()
	s.metrics.SetSystemInfo(version, buildTime)

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.closers = append(s.closers, tracingCleanup)

	logger.Info("tracing initialized",
		zap.Bool("enabled", cfg.Tracing.Enabled),
		zap.String("service", cfg.Tracing.ServiceName),
		zap.String("jaeger_endpoint", cfg.Tracing.JaegerEndpoint),
		zap.Float64("sample_rate", cfg.Tracing.SampleRate),
	)

	s.queues = queue.NewRegistry(queue.WithMetrics(s.metrics))

	s.subscribers = subscribers.NewRegistry()
	if err := subscribers.RegisterDefaults(s.subscribers, cfg.Subscribers, logger); err != nil {
		return nil, fmt.Errorf("failed to register subscribers: %w", err)
	}

	metricsResolver := dispatcher.NewMetricsResolver(s.subscribers, s.metrics)
	resolver := dispatcher.NewTracedResolver(metricsResolver, tracer)

	s.dispatcher, err = dispatcher.New(s.queues, resolver, logger, events.Kinds()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	basePublisher, err := publisher.New(s.queues, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	var (
		pub  bus.Publisher = basePublisher
		opts []httpapi.Option
	)

	if cfg.AuditEnabled {
		auditLog, err := s.newAuditLog()
		if err != nil {
			return nil, err
		}
		pub = publisher.NewAuditPublisher(pub, auditLog, logger)
		opts = append(opts, httpapi.WithAudit(auditLog))
	}

	if cfg.Redis.Addr != "" {
		client, err := httpapi.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		opts = append(opts, httpapi.WithIdempotency(client))

		logger.Info("idempotency keys enabled", zap.String("redis_addr", cfg.Redis.Addr))
	}

	metricsPublisher := publisher.NewMetricsPublisher(pub, s.metrics)
	s.publisher = publisher.NewTracedPublisher(metricsPublisher, tracer)

	s.router, err = httpapi.New(s.publisher, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create http api: %w", err)
	}

	s.metricsServer = metrics.NewServer(cfg.Metrics, s.metrics, logger, s.dispatcher.Ready)

	return s, nil
}

func (s *service) newAuditLog() (*bus.AuditLog, error) {
	cluster, bucket, err := couchbase.Connect(s.cfg.Couchbase)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to couchbase: %w", err)
	}
	s.closers = append(s.closers, func(context.Context) error { return cluster.Close(nil) })

	store, err := bus.NewAuditStore(cluster, bucket, s.cfg.Couchbase.ScopeName)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit store: %w", err)
	}

	auditLog, err := bus.NewAuditLog(store)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}

	s.logger.Info("event auditing enabled",
		zap.String("bucket", s.cfg.Couchbase.BucketName),
		zap.String("scope", s.cfg.Couchbase.ScopeName),
	)

	return auditLog, nil
}

// run serves until ctx is done. Shutdown stops the HTTP server first, then closes
// the queues so the dispatcher drains what was already published. Dispatch is
// cancelled if draining outlasts the shutdown timeout.
func (s *service) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTPAddr, err)
	}

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	dispatchCtx, cancelDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDispatch()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.dispatcher.Run(dispatchCtx)
	})

	g.Go(func() error {
		return s.metricsServer.Start(gctx)
	})

	g.Go(func() error {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to gracefully shutdown http server", zap.Error(err))
		}

		s.queues.Close()

		select {
		case <-s.dispatcher.Done():
		case <-shutdownCtx.Done():
			s.logger.Warn("dispatcher did not drain before shutdown timeout, cancelling handlers")
			cancelDispatch()
			<-s.dispatcher.Done()
		}

		return nil
	})

	return g.Wait()
}

func (s *service) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Error("failed to release resource", zap.Error(err))
		}
	}
	s.closers = nil
}
