package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Haleralex/walletcore/internal/config"
	"github.com/Haleralex/walletcore/internal/container"
)

func main() {
	// .env is a local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := container.New(cfg)
	if err := c.Initialize(ctx); err != nil {
		log.Fatalf("initialize: %v", err)
	}

	c.StartWorkers(ctx)

	if err := c.HTTPServer().RunWithContext(ctx); err != nil {
		c.Logger().Error("http server error", "error", err)
	}

	// Worker goroutines observe the same ctx; by the time RunWithContext
	// returns on a signal they are already winding down.
	shutdownCtx := context.Background()
	if err := c.Shutdown(shutdownCtx); err != nil {
		c.Logger().Error("shutdown error", "error", err)
		os.Exit(1)
	}
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
