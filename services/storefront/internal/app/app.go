package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/gothglitter/storefront/pkg/database"
	"github.com/gothglitter/storefront/pkg/health"
	pkgkafka "github.com/gothglitter/storefront/pkg/kafka"
	"github.com/gothglitter/storefront/pkg/middleware"
	"github.com/gothglitter/storefront/pkg/tracing"
	"github.com/gothglitter/storefront/services/storefront/internal/config"
	"github.com/gothglitter/storefront/services/storefront/internal/event"
	handler "github.com/gothglitter/storefront/services/storefront/internal/handler/http"
	"github.com/gothglitter/storefront/services/storefront/internal/provider"
	"github.com/gothglitter/storefront/services/storefront/internal/provider/mock"
	"github.com/gothglitter/storefront/services/storefront/internal/provider/stripe"
	"github.com/gothglitter/storefront/services/storefront/internal/repository/postgres"
	redisrepo "github.com/gothglitter/storefront/services/storefront/internal/repository/redis"
	"github.com/gothglitter/storefront/services/storefront/internal/service"
	"github.com/gothglitter/storefront/services/storefront/migrations"
)

const slowQueryThreshold = 200 * time.Millisecond

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	sweeper        *service.Sweeper
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.SetSlowQueryLogging(slowQueryThreshold, logger)

	// Redis holds every reservation; without it nothing works.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr))

	// PostgreSQL only seeds stock counters.
	pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.DBName),
	)
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	prometheus.MustRegister(
		database.NewPostgresPoolCollector(pool),
		database.NewRedisPoolCollector(rdb),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	kafkaCfg.Async = cfg.KafkaAsync
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	payments, err := newPaymentProvider(cfg, logger)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		_ = producer.Close()
		return nil, err
	}

	// Build the dependency graph.
	holds := redisrepo.NewHoldStore(rdb)
	catalog := postgres.NewCatalogRepository(pool)
	eventProducer := event.NewProducer(producer, logger)
	inventoryService := service.NewInventoryService(holds, catalog, eventProducer, logger)
	cartService := service.NewCartService(holds, inventoryService, logger)
	paymentService := service.NewPaymentService(payments, logger)
	sweeper := service.NewSweeper(cartService, holds, cfg.CartTTL, cfg.SweepInterval, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", holds.Ping)
	healthHandler.RegisterNonCritical("postgres", catalog.Ping)
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.AllowedOrigins
	cors.AllowCredentials = true
	cors.Environment = cfg.Environment

	// HTTP router.
	router := handler.NewRouter(inventoryService, cartService, paymentService, healthHandler, handler.RouterConfig{
		AdminToken: cfg.AdminToken,
		CORS:       cors,
		Session: middleware.SessionConfig{
			Secure: cfg.SessionSecure,
		},
		PprofCIDRs: cfg.PprofCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          rdb,
		producer:       producer,
		sweeper:        sweeper,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func newPaymentProvider(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, using mock payment provider")
		return mock.NewProvider(), nil
	}
	p, err := stripe.NewProvider(cfg.StripeSecretKey, logger)
	if err != nil {
		return nil, fmt.Errorf("init stripe: %w", err)
	}
	return p, nil
}

// Run starts the HTTP server and the idle-cart sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = a.sweeper.Run(sweepCtx)
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopSweeper()
	<-sweepDone
	return multierr.Append(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if e := a.httpServer.Shutdown(shutdownCtx); e != nil {
		err = multierr.Append(err, fmt.Errorf("http server shutdown: %w", e))
	}
	if e := a.producer.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("kafka producer close: %w", e))
	}
	if e := a.redis.Close(); e != nil {
		err = multierr.Append(err, fmt.Errorf("redis close: %w", e))
	}
	a.pool.Close()
	if e := a.tracerShutdown(shutdownCtx); e != nil {
		err = multierr.Append(err, fmt.Errorf("tracer shutdown: %w", e))
	}

	for _, e := range multierr.Errors(err) {
		a.logger.Error("shutdown error", slog.String("error", e.Error()))
	}
	a.logger.Info("application shutdown complete")
	return err
}
