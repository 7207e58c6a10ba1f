package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/beacon/pkg/api"
	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/manifest"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	manifestPath := flag.String("manifest", "", "Client manifest path (overrides BEACON_MANIFEST_PATH)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *manifestPath != "" {
		cfg.Manifest.Path = *manifestPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("beacon: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "beacon")

	logrusLogger := logrus.New()
	logrusLogger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel.String()); err == nil {
		logrusLogger.SetLevel(level)
	}

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		metrics   *observability.Metrics
		observers []dispatch.Observer
	)
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		observers = append(observers, metrics)
	}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics(otel.GetMeterProvider().Meter("github.com/platinummonkey/beacon"))
		if err != nil {
			return err
		}
		observers = append(observers, otelMetrics)
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithObserver(dispatch.Observers(observers...)),
	}
	if cfg.Dispatch.ContinueOnError {
		dispatchOpts = append(dispatchOpts, dispatch.WithContinueOnError())
	}
	dispatcher, err := dispatch.New(dispatchOpts...)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	// Client manifest
	builder := manifest.NewBuilder(manifest.Deps{
		Logger:         logger,
		LogrusLogger:   logrusLogger,
		Registerer:     registry,
		TracerProvider: otel.GetTracerProvider(),
		HTTPClient:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	})
	reconciler := manifest.NewReconciler(dispatcher, builder, logger)

	watcherOpts := manifest.WatcherOptions{
		Watch:          cfg.Manifest.Watch,
		ResyncSchedule: cfg.Manifest.Resync,
	}
	if metrics != nil {
		watcherOpts.Observer = metrics
	}
	watcher := manifest.NewWatcher(cfg.Manifest.Path, reconciler, logger, watcherOpts)

	result, err := watcher.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to load client manifest: %w", err)
	}
	logger.WithFields(map[string]any{
		"analytics": dispatcher.RegisteredAnalyticsClients(),
		"error":     dispatcher.RegisteredErrorClients(),
		"added":     len(result.Added),
	}).Info("Clients registered")

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start manifest watcher: %w", err)
	}

	// API server
	var limiter *httputil.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = httputil.NewRateLimiter(httputil.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimit,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.RateLimitBurst,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		}, nil)
		limiter.StartCleanup(ctx)
	}
	apiServer := api.NewServer(dispatcher, api.Options{
		Logger:           logger,
		Metrics:          metrics,
		LinkDelay:        cfg.Dispatch.LinkDelay,
		LinkAllowedHosts: cfg.Dispatch.LinkAllowedHosts,
		MaxBodyBytes:     int64(cfg.Server.MaxBodyBytes),
		RateLimiter:      limiter,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(dispatcher, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:        cfg.Server.HealthAddr(),
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	// Hooks run in reverse: watcher, then clients, then telemetry.
	shutdown.RegisterShutdownFunc(providers.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		if err := reconciler.Close(); err != nil {
			return err
		}
		return dispatcher.Close()
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return watcher.Stop()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Starting API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}
