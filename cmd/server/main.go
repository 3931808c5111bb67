package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nietos/internal/applications"
	"nietos/internal/applications/handler"
	appmetrics "nietos/internal/applications/metrics"
	"nietos/internal/applications/secrets"
	"nietos/internal/applications/service"
	"nietos/internal/applications/store"
	"nietos/internal/platform/config"
	"nietos/internal/platform/httpserver"
	"nietos/internal/platform/logger"
	"nietos/internal/platform/metrics"
	"nietos/internal/platform/postgres"
	"nietos/internal/platform/redis"
	rlmetrics "nietos/internal/ratelimit/metrics"
	rlmiddleware "nietos/internal/ratelimit/middleware"
	"nietos/internal/ratelimit/service/requestlimit"
	"nietos/internal/ratelimit/store/bucket"
	httptransport "nietos/internal/transport/http"
	"nietos/pkg/platform/audit/kafka"
	"nietos/pkg/platform/audit/publisher"
	"nietos/pkg/platform/circuit"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
	startupTimeout        = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	var shutdown []func(context.Context) error
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for i := len(shutdown) - 1; i >= 0; i-- {
			if err := shutdown[i](closeCtx); err != nil {
				log.Warn("failed to release resource", "error", err)
			}
		}
	}()

	health := map[string]httptransport.HealthCheck{}

	// Record store
	var appStore service.Store
	if cfg.UsesPostgres() {
		connector := postgres.NewConnector(cfg.Database,
			postgres.WithLogger(log),
			postgres.WithMigrations(store.Migrations()),
		)
		shutdown = append(shutdown, func(context.Context) error { return connector.Close() })
		// Connect and migrate in the background; requests that arrive first share
		// the same in-flight attempt.
		go func() {
			if _, err := connector.DB(ctx); err != nil {
				log.Warn("initial database connection failed, will retry on demand", "error", err)
			}
		}()
		appStore = store.NewPostgres(connector)
		log.Info("using postgres record store")
	} else {
		appStore = store.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory record store")
	}

	// Audit trail
	pubOpts := []publisher.Option{publisher.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, kafka.WithLogger(log))
		if err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
		shutdown = append(shutdown, sink.Close)
		ensureCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		if err := sink.EnsureTopic(ensureCtx, auditTopicPartitions, auditTopicReplication); err != nil {
			log.Warn("failed to ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		cancel()
		pubOpts = append(pubOpts, publisher.WithSink(sink))
		health["kafka"] = sink.Ping
	}
	auditPublisher := publisher.NewPublisher(pubOpts...)

	// Rate limiting
	var buckets bucket.BucketStore = bucket.NewInMemoryBucketStore()
	redisCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	rc, err := redis.New(redisCtx, cfg.Redis)
	cancel()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rc != nil {
		shutdown = append(shutdown, func(context.Context) error { return rc.Close() })
		buckets = bucket.NewFallbackBucketStore(
			bucket.NewRedisBucketStore(rc.Client),
			bucket.NewInMemoryBucketStore(),
			circuit.New("ratelimit-redis"),
			log,
		)
		health["redis"] = rc.Health
	}
	limiterMetrics := rlmetrics.New()
	limiter, err := requestlimit.New(buckets,
		requestlimit.WithLogger(log),
		requestlimit.WithAuditPublisher(auditPublisher),
		requestlimit.WithMetrics(limiterMetrics),
		requestlimit.WithLimits(cfg.RateLimit),
	)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	limitMiddleware := rlmiddleware.New(limiter, log,
		rlmiddleware.WithDisabled(cfg.RateLimit.Disabled),
		rlmiddleware.WithMetrics(limiterMetrics),
	)

	// Applications
	appService := applications.NewService(appStore,
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(appmetrics.New()),
		service.WithHasher(secrets.NewHasher(cfg.BcryptCost)),
	)
	health["store"] = appService.Ping
	appHandler := applications.NewHandler(appService, log, handler.WithRateLimiter(limitMiddleware))

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        metrics.New(),
		MetricsHandler: metrics.Handler(),
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Health:         health,
		Registrars:     []httptransport.Registrar{appHandler},
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting nietos", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
