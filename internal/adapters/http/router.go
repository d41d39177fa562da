// Package http assembles the HTTP shell: middleware chain, routes, and the
// server lifecycle.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
	"github.com/Haleralex/walletcore/internal/adapters/http/handlers"
	"github.com/Haleralex/walletcore/internal/adapters/http/middleware"
	"github.com/Haleralex/walletcore/internal/config"
)

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	Logger      *slog.Logger
	Version     string
	Environment string
	RateLimit   config.RateLimitConfig

	Wallets   handlers.WalletEngine
	Transfers handlers.TransferEngine
	Admin     handlers.WalletAdministration
	Probes    map[string]handlers.Probe
}

// NewRouter builds the gin engine with the full middleware chain and all
// routes registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	handlers.SetupValidator()

	router := gin.New()

	// Recovery first so every later panic is caught.
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.Logging(cfg.Logger))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(&middleware.RateLimitConfig{
			Limit: cfg.RateLimit.RequestsPerMinute,
		}))
	}
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.Probes)
	healthHandler.RegisterRoutes(router)

	v1 := router.Group("/v1")

	var financialOps gin.HandlerFunc
	if cfg.RateLimit.Enabled && cfg.RateLimit.FinancialOpsPerMin > 0 {
		financialOps = middleware.FinancialOpsRateLimit(cfg.RateLimit.FinancialOpsPerMin)
	}

	walletHandler := handlers.NewWalletHandler(cfg.Wallets, cfg.Transfers)
	walletHandler.RegisterRoutes(v1, financialOps)

	if cfg.Admin != nil {
		adminHandler := handlers.NewAdminHandler(cfg.Admin)
		adminHandler.RegisterRoutes(v1)
	}

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, 404, "NotFound", "Endpoint not found")
	})

	return router
}
