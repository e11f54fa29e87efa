package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/config"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/email"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/event"
	handlerhttp "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/handler/http"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/push"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/recovery"
	storepg "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/store/postgres"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/internal/trio"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/database"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/health"
	pkgkafka "github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/kafka"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/tracing"
)

// App owns the process-level resources of the trio engine and their
// shutdown order.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *pkgkafka.Producer
	server   *http.Server

	shutdownTracing func(context.Context) error
}

// New builds the full engine: database, optional redis and kafka, the
// websocket hub, the orchestrator and the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.TraceSampleRate,
		Enabled:      cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracing = shutdownTracing

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var queueBackend recovery.QueueBackend
	if cfg.RedisEnabled() {
		a.redis, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		queueBackend = recovery.NewRedisQueue(a.redis)
	} else {
		logger.Warn("redis not configured, recovery queue is in-memory")
		queueBackend = recovery.NewMemoryQueue()
	}

	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	} else {
		logger.Warn("kafka not configured, lifecycle events disabled")
	}

	var sender email.Sender
	if cfg.EmailServiceURL != "" {
		sender = email.NewHTTPSender(cfg.EmailServiceURL, logger)
	} else {
		logger.Warn("email service not configured, mail is log-only")
		sender = email.NewLogSender(logger)
	}

	hub := push.NewHub(logger)

	orchestrator := trio.NewOrchestrator(trio.ConfigForEnvironment(cfg.Environment), trio.Deps{
		Email:    sender,
		Messages: storepg.NewMessageRepository(a.pool),
		Push:     hub,
		Recovery: recovery.NewHandler(queueBackend, logger),
		Registry: trio.NewRegistry(),
		Events:   event.NewProducer(a.producer, logger),
		Metrics:  trio.NewMetrics(),
		Logger:   logger,
	})

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}

	router := handlerhttp.NewRouter(
		handlerhttp.NewTrioHandler(orchestrator, hub, logger),
		healthHandler,
		cfg.ServiceName,
		logger,
	)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down in
// reverse dependency order.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	a.close(shutdownCtx)
	return nil
}

func (a *App) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close failed", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close failed", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.logger.Error("tracing shutdown failed", "error", err)
		}
	}
}
