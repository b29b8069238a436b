// Package app wires the shop service together and runs it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MyZenaa/pgpbl-jamubae/internal/archive"
	"github.com/MyZenaa/pgpbl-jamubae/internal/cart"
	"github.com/MyZenaa/pgpbl-jamubae/internal/config"
	"github.com/MyZenaa/pgpbl-jamubae/internal/event"
	handler "github.com/MyZenaa/pgpbl-jamubae/internal/handler/http"
	"github.com/MyZenaa/pgpbl-jamubae/internal/jobs"
	"github.com/MyZenaa/pgpbl-jamubae/internal/location"
	"github.com/MyZenaa/pgpbl-jamubae/internal/order"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store/memory"
	redisstore "github.com/MyZenaa/pgpbl-jamubae/internal/store/redis"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/database"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/health"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/httpclient"
	pkgkafka "github.com/MyZenaa/pgpbl-jamubae/pkg/kafka"
	"github.com/MyZenaa/pgpbl-jamubae/pkg/tracing"
)

const serviceName = "shop"

// closableStore is what both store backends expose beyond KeyedStore.
type closableStore interface {
	store.KeyedStore
	Close()
}

// App wires together all dependencies and runs the shop service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb          *redis.Client
	state        closableStore
	producer     *pkgkafka.Producer
	mirror       *archive.Mirror
	reconcileJob *jobs.ReconcileJob
	httpServer   *http.Server

	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		traceCfg := tracing.DefaultConfig(serviceName)
		traceCfg.Environment = cfg.Environment
		traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
		traceCfg.SampleRate = cfg.TracingSampleRate
		traceCfg.Enabled = true

		shutdown, err := tracing.InitTracer(ctx, traceCfg)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		a.shutdownTracer = shutdown
	}

	healthHandler := health.NewHandler()

	// State store backend.
	switch cfg.StoreBackend {
	case "memory":
		a.state = memory.New(logger)
		logger.Info("using in-memory state store")
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)

		a.rdb = rdb
		a.state = redisstore.New(rdb, logger)
		healthHandler.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers, serviceName)
	a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Domain services.
	events := event.NewProducer(a.producer, logger)
	carts := cart.NewService(a.state, events, logger)
	orders := order.NewService(a.state, carts, events, order.Config{
		StoreName:         cfg.StoreName,
		Origin:            cfg.StoreOrigin(),
		ShippingRatePerKm: cfg.ShippingRatePerKm,
	}, logger)

	// Location bridge client behind a circuit breaker.
	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("location-bridge"),
		logger,
	)
	locations := location.NewClient(cb, cfg.LocationBridgeURL, logger)

	// Optional Postgres order archive.
	if cfg.ArchiveEnabled {
		pgCfg := cfg.PostgresConfig()
		pool, err := database.NewPostgresPool(ctx, &pgCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to Postgres",
			slog.String("host", pgCfg.Host),
			slog.String("db", pgCfg.DBName),
		)

		a.mirror = archive.NewMirror(archive.NewRepository(pool), orders, logger)
		healthHandler.Register("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}

	a.reconcileJob = jobs.NewReconcileJob(orders, cfg.ReconcileSchedule, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Carts:        carts,
		Orders:       orders,
		Locations:    locations,
		Health:       healthHandler,
		StoreOrigin:  cfg.StoreOrigin(),
		ShippingRate: cfg.ShippingRatePerKm,
		Logger:       logger,
	})

	a.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE streams stay open as long as the client does.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts everything and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if a.mirror != nil {
		if err := a.mirror.Start(); err != nil {
			return fmt.Errorf("start archive mirror: %w", err)
		}
	}
	if err := a.reconcileJob.Start(); err != nil {
		return fmt.Errorf("start reconcile job: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.reconcileJob.Stop()
	if a.mirror != nil {
		a.mirror.Stop()
	}

	a.state.Close()

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}
