package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/fxledger/internal/adapter/http"
	"github.com/iho/fxledger/internal/adapter/http/handler"
	"github.com/iho/fxledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/fxledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/fxledger/internal/adapter/repository/redis"
	"github.com/iho/fxledger/internal/infrastructure/config"
	"github.com/iho/fxledger/internal/infrastructure/eventpublisher"
	"github.com/iho/fxledger/internal/infrastructure/logger"
	"github.com/iho/fxledger/internal/infrastructure/metrics"
	"github.com/iho/fxledger/internal/infrastructure/postgres"
	"github.com/iho/fxledger/internal/infrastructure/redis"
	"github.com/iho/fxledger/internal/usecase"
)

const serviceName = "fxledger"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})
	log.Logger = appLogger
	zerolog.DefaultContextLogger = &appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to postgres")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegisterer(registry)

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	mirrorRepo := postgresRepo.NewMirrorRepository(pool)
	poolRepo := postgresRepo.NewPoolRepository(pool)
	customerRepo := postgresRepo.NewCustomerRepository(pool)
	bankAccountRepo := postgresRepo.NewBankAccountRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier().WithMaxRetries(cfg.RetryMaxAttempts).WithLogger(logger)

	// Use cases
	ledgerUC := usecase.NewLedgerUseCase(
		txManager, entryRepo, mirrorRepo, poolRepo, customerRepo, bankAccountRepo, outboxRepo, auditRepo, idGen,
	).
		WithRetrier(retrier).
		WithMetrics(m).
		WithLogger(logger)
	projectorUC := usecase.NewProjectorUseCase(entryRepo, mirrorRepo, poolRepo, customerRepo, bankAccountRepo).
		WithMetrics(m).
		WithLogger(logger)
	ownerUC := usecase.NewOwnerUseCase(customerRepo, bankAccountRepo, mirrorRepo, idGen)

	routerCfg := httpAdapter.RouterConfig{
		OwnerHandler:   handler.NewOwnerHandler(ownerUC),
		LedgerHandler:  handler.NewLedgerHandler(ledgerUC, projectorUC),
		IdempotencyTTL: cfg.IdempotencyTTL,
		RateLimiter:    newRateLimiter(cfg),
		HTTPMetrics:    middleware.NewHTTPMetrics(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         &logger,
	}

	// Redis is optional: without it there is no balance cache and no
	// idempotency keys.
	var redisPinger handler.Pinger
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()

		cache := redisRepo.NewBalanceCache(redisClient)
		ledgerUC.WithCache(cache, cfg.BalanceCacheTTL)
		projectorUC.WithCache(cache, cfg.BalanceCacheTTL)
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		redisPinger = pingRedis(redisClient)
	} else {
		logger.Warn().Msg("REDIS_URL not set; balance cache and idempotency keys disabled")
	}
	routerCfg.HealthHandler = handler.NewHealthHandler(pool, redisPinger)

	if cfg.OutboxEnabled {
		publisher, closePublisher, err := newPublisher(cfg, logger)
		if err != nil {
			return fmt.Errorf("create event publisher: %w", err)
		}
		defer closePublisher()

		relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: outboxRepo,
			Publisher:  publisher,
			Observer:   m,
			Logger:     &logger,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			Retention:  cfg.OutboxRetention,
		})
		go func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("outbox relay stopped")
			}
		}()
	}

	go samplePoolStats(ctx, pool, m, 15*time.Second)
	if routerCfg.RateLimiter != nil {
		go cleanupLimiters(ctx, routerCfg.RateLimiter, time.Minute)
	}

	server := newHTTPServer(cfg, httpAdapter.NewRouter(routerCfg))

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

func newRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}

// newPublisher picks Kafka when brokers are configured and the log otherwise.
func newPublisher(cfg *config.Config, logger zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return eventpublisher.NewLogPublisher(logger), func() {}, nil
	}

	kafka, err := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing ledger events to kafka")

	return kafka, func() {
		if err := kafka.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close kafka producer")
		}
	}, nil
}

func pingRedis(client goredis.Cmdable) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func samplePoolStats(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		stat := pool.Stat()
		m.SetDBConnections(stat.TotalConns(), stat.IdleConns())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter, idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(idle)
		}
	}
}
