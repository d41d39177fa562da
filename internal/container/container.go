// Package container wires the application dependency graph.
//
// Initialization is staged: logger, then external resources (postgres,
// redis, rabbitmq), then repositories, use cases, workers, and the HTTP
// server. Shutdown releases in the reverse order so nothing is torn down
// while still in use.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	httpadapter "github.com/Haleralex/walletcore/internal/adapters/http"
	"github.com/Haleralex/walletcore/internal/adapters/http/handlers"
	"github.com/Haleralex/walletcore/internal/application/usecases/transfer"
	"github.com/Haleralex/walletcore/internal/application/usecases/wallet"
	"github.com/Haleralex/walletcore/internal/config"
	"github.com/Haleralex/walletcore/internal/domain/valueobjects"
	"github.com/Haleralex/walletcore/internal/infrastructure/cache/redis"
	"github.com/Haleralex/walletcore/internal/infrastructure/messaging/rabbitmq"
	"github.com/Haleralex/walletcore/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/walletcore/internal/pkg/logger"
	"github.com/Haleralex/walletcore/internal/pkg/retry"
	"github.com/Haleralex/walletcore/internal/workers"
)

// Container holds every long-lived component of the service.
type Container struct {
	cfg    *config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	redisClient *goredis.Client
	broker      *rabbitmq.Connection
	publisher   *rabbitmq.Publisher

	walletRepo      *postgres.WalletRepository
	eventRepo       *postgres.EventRepository
	sagaRepo        *postgres.SagaRepository
	idempotencyRepo *postgres.IdempotencyRepository
	outboxRepo      *postgres.OutboxRepository

	balanceCache *redis.BalanceCache
	locker       *redis.RequestLocker

	coordinator    *postgres.Coordinator
	walletEngine   *wallet.Engine
	transferEngine *transfer.Engine

	outboxRelay  *workers.OutboxRelay
	sagaRecovery *workers.SagaRecovery
	janitor      *workers.Janitor

	httpServer *httpadapter.Server
}

// New creates an uninitialized container over the configuration.
func New(cfg *config.Config) *Container {
	return &Container{cfg: cfg}
}

// Initialize builds the full dependency graph. Partially built resources
// are left for Shutdown to release.
func (c *Container) Initialize(ctx context.Context) error {
	c.initLogger()

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := c.initRedis(ctx); err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	if err := c.initBroker(); err != nil {
		return fmt.Errorf("init broker: %w", err)
	}

	c.initRepositories()
	if err := c.initUseCases(); err != nil {
		return fmt.Errorf("init use cases: %w", err)
	}
	c.initWorkers()
	c.initHTTPServer()

	c.logger.Info("container initialized",
		"app", c.cfg.App.Name,
		"version", c.cfg.App.Version,
		"environment", c.cfg.App.Environment,
	)
	return nil
}

func (c *Container) initLogger() {
	logCfg := &logger.Config{
		Level:  c.cfg.Log.Level,
		Format: c.cfg.Log.Format,
	}
	c.logger = logger.New(logCfg)
	logger.Setup(logCfg)
}

func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := postgres.NewConnectionPool(ctx, c.cfg.Database)
	if err != nil {
		return err
	}
	c.pool = pool
	c.logger.Info("database pool established", "host", c.cfg.Database.Host, "database", c.cfg.Database.Database)
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, c.cfg.Redis)
	if err != nil {
		return err
	}
	c.redisClient = client
	c.logger.Info("redis connection established", "addr", c.cfg.Redis.Addr())
	return nil
}

func (c *Container) initBroker() error {
	conn, err := rabbitmq.Dial(c.cfg.Broker.URL)
	if err != nil {
		return err
	}
	c.broker = conn

	publisher, err := rabbitmq.NewPublisher(conn, c.cfg.Broker.Exchange)
	if err != nil {
		conn.Close()
		c.broker = nil
		return err
	}
	c.publisher = publisher

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("topology channel: %w", err)
	}
	defer ch.Close()
	if err := c.topology().Declare(ch); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	c.logger.Info("broker connection established", "exchange", c.cfg.Broker.Exchange)
	return nil
}

func (c *Container) topology() rabbitmq.Topology {
	return rabbitmq.Topology{
		Exchange:   c.cfg.Broker.Exchange,
		FraudQueue: c.cfg.Broker.FraudQueue,
	}
}

func (c *Container) initRepositories() {
	c.walletRepo = postgres.NewWalletRepository(c.pool)
	c.eventRepo = postgres.NewEventRepository(c.pool)
	c.sagaRepo = postgres.NewSagaRepository(c.pool)
	c.idempotencyRepo = postgres.NewIdempotencyRepository(c.pool)
	c.outboxRepo = postgres.NewOutboxRepository(c.pool)

	c.balanceCache = redis.NewBalanceCache(c.redisClient, c.cfg.Wallet.BalanceCacheTTL)
	c.locker = redis.NewRequestLocker(c.redisClient)
}

func (c *Container) initUseCases() error {
	defaultCurrency, err := valueobjects.NewCurrency(c.cfg.Wallet.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("default currency: %w", err)
	}

	c.coordinator = postgres.NewCoordinator(c.pool, c.outboxRepo, c.locker, c.publisher, c.logger)

	policy := retry.Policy{
		InitialInterval: c.cfg.Wallet.InitialBackoff,
		MaxInterval:     c.cfg.Wallet.MaxBackoff,
		MaxJitter:       100 * time.Millisecond,
		MaxAttempts:     c.cfg.Wallet.MaxRetries,
	}

	c.walletEngine = wallet.NewEngine(
		c.coordinator,
		c.walletRepo,
		c.eventRepo,
		c.idempotencyRepo,
		c.balanceCache,
		wallet.EngineConfig{
			DefaultCurrency:  defaultCurrency,
			RequestLockTTL:   c.cfg.Wallet.RequestLockTTL,
			BalanceCacheTTL:  c.cfg.Wallet.BalanceCacheTTL,
			HistoryPageLimit: c.cfg.Wallet.HistoryPageLimit,
			RetryPolicy:      policy,
		},
		c.logger,
	)

	c.transferEngine = transfer.NewEngine(
		c.coordinator,
		c.walletRepo,
		c.sagaRepo,
		c.eventRepo,
		c.idempotencyRepo,
		c.balanceCache,
		c.locker,
		transfer.EngineConfig{
			RequestLockTTL: c.cfg.Wallet.RequestLockTTL,
			RetryPolicy:    policy,
		},
		c.logger,
	)

	return nil
}

func (c *Container) initWorkers() {
	w := c.cfg.Workers
	c.outboxRelay = workers.NewOutboxRelay(c.outboxRepo, c.publisher, w.OutboxInterval, w.OutboxBatchSize, c.logger)
	c.sagaRecovery = workers.NewSagaRecovery(c.transferEngine, w.RecoveryInterval, w.SagaStuckThreshold, w.RecoveryBatchSize, c.logger)
	c.janitor = workers.NewJanitor(c.idempotencyRepo, c.outboxRepo, w.JanitorInterval, c.cfg.Wallet.IdempotencyTTL, w.OutboxRetention, c.logger)
}

func (c *Container) initHTTPServer() {
	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Logger:      c.logger,
		Version:     c.cfg.App.Version,
		Environment: c.cfg.App.Environment,
		RateLimit:   c.cfg.RateLimit,
		Wallets:     c.walletEngine,
		Transfers:   c.transferEngine,
		Admin:       c.walletEngine,
		Probes: map[string]handlers.Probe{
			"database": func(ctx context.Context) error {
				return postgres.HealthCheck(ctx, c.pool)
			},
			"cache": func(ctx context.Context) error {
				return redis.HealthCheck(ctx, c.redisClient)
			},
			"broker": func(context.Context) error {
				if c.broker.IsClosed() {
					return fmt.Errorf("broker connection is closed")
				}
				return nil
			},
		},
	})
	c.httpServer = httpadapter.NewServer(c.cfg.Server, router, c.logger)
}

// StartWorkers launches the background loops. They stop when ctx is
// cancelled.
func (c *Container) StartWorkers(ctx context.Context) {
	go c.outboxRelay.Run(ctx)
	go c.sagaRecovery.Run(ctx)
	go c.janitor.Run(ctx)
}

// Shutdown releases resources in reverse initialization order. The HTTP
// server drains first so in-flight requests still have their backends.
func (c *Container) Shutdown(ctx context.Context) error {
	var firstErr error
	record := func(stage string, err error) {
		if err == nil {
			return
		}
		c.logger.Error("shutdown stage failed", "stage", stage, "error", err)
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", stage, err)
		}
	}

	if c.httpServer != nil {
		record("http", c.httpServer.Shutdown(ctx))
	}
	if c.publisher != nil {
		record("publisher", c.publisher.Close())
	}
	if c.broker != nil {
		record("broker", c.broker.Close())
	}
	if c.redisClient != nil {
		record("redis", c.redisClient.Close())
	}
	if c.pool != nil {
		c.pool.Close()
	}

	if firstErr == nil {
		c.logger.Info("container shut down")
	}
	return firstErr
}

// Logger returns the container's logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// HTTPServer returns the wired HTTP server.
func (c *Container) HTTPServer() *httpadapter.Server {
	return c.httpServer
}

