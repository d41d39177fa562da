// The fraud worker consumes wallet events from RabbitMQ and evaluates them
// against the fraud rules. It runs separately from the API so that a slow
// rule evaluation never backs up HTTP traffic.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/application/usecases/fraud"
	"github.com/Haleralex/walletcore/internal/config"
	"github.com/Haleralex/walletcore/internal/infrastructure/cache/redis"
	"github.com/Haleralex/walletcore/internal/infrastructure/messaging/rabbitmq"
	"github.com/Haleralex/walletcore/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/walletcore/internal/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	slogger := logger.New(logCfg)
	logger.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewConnectionPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close()

	fraudStore := redis.NewFraudStore(redisClient)
	processor := fraud.NewProcessor(
		postgres.NewFraudAlertRepository(pool),
		fraudStore,
		fraudStore,
		fraud.Config{
			Threshold:      decimal.NewFromFloat(cfg.Fraud.Threshold),
			MaxWithdrawals: cfg.Fraud.MaxWithdrawals,
			TimeWindow:     cfg.Fraud.TimeWindow,
			ProcessedTTL:   cfg.Fraud.ProcessedTTL,
		},
		slogger,
	)

	handler := func(ctx context.Context, body []byte) rabbitmq.Outcome {
		switch processor.Process(ctx, body) {
		case fraud.Retry:
			return rabbitmq.Retry
		case fraud.Reject:
			return rabbitmq.Dead
		default:
			return rabbitmq.Ack
		}
	}

	topology := rabbitmq.Topology{
		Exchange:   cfg.Broker.Exchange,
		FraudQueue: cfg.Broker.FraudQueue,
	}

	if err := consumeLoop(ctx, cfg, topology, handler, slogger); err != nil {
		slogger.Error("fraud worker stopped", "error", err)
		os.Exit(1)
	}
	slogger.Info("fraud worker stopped")
}

// consumeLoop keeps a consumer alive across broker outages. Each failed Run
// redials with exponential backoff until ctx is cancelled.
func consumeLoop(
	ctx context.Context,
	cfg *config.Config,
	topology rabbitmq.Topology,
	handler rabbitmq.Handler,
	slogger *slog.Logger,
) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry until cancelled

	return backoff.Retry(func() error {
		conn, err := rabbitmq.Dial(cfg.Broker.URL)
		if err != nil {
			slogger.Warn("broker dial failed", "error", err)
			return err
		}
		defer conn.Close()

		consumer := rabbitmq.NewConsumer(conn, topology, cfg.Broker.PrefetchCount, slogger)

		err = consumer.Run(ctx, handler)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		slogger.Warn("consumer terminated, reconnecting", "error", err)
		policy.Reset()
		return err
	}, backoff.WithContext(policy, ctx))
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("WALLETCORE_CONFIG_PATH"); path != "" {
		name := os.Getenv("WALLETCORE_CONFIG_NAME")
		if name == "" {
			name = "config"
		}
		return config.Load(path, name)
	}
	return config.LoadFromEnv()
}
