package routes

import (
	"github.com/cryptofolio/cryptofolio/internal/api/handlers"
	"github.com/cryptofolio/cryptofolio/internal/api/middleware"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/config"
	"github.com/cryptofolio/cryptofolio/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes
func SetupRoutes(
	cfg *config.Config,
	portfolioHandlers *handlers.PortfolioHandlers,
	healthHandlers *handlers.HealthHandlers,
	log *logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware - order matters
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))

	// Probes and metrics (no rate limit concerns at this volume)
	router.GET("/health", healthHandlers.Health)
	router.GET("/ready", healthHandlers.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users/:userId")
		{
			users.POST("/holdings", portfolioHandlers.CreateHolding)

			pf := users.Group("/portfolio")
			{
				pf.GET("/summary", portfolioHandlers.GetSummary)
				pf.GET("/performance", portfolioHandlers.GetPerformance)
				pf.GET("/metrics", portfolioHandlers.GetEnhancedMetrics)
				pf.GET("/metrics/advanced", portfolioHandlers.GetAdvancedMetrics)
				pf.GET("/metrics/risk", portfolioHandlers.GetRiskMetrics)
				pf.GET("/benchmarks", portfolioHandlers.GetBenchmarks)
			}
		}

		holdings := v1.Group("/holdings/:holdingId")
		{
			holdings.DELETE("", portfolioHandlers.DeleteHolding)
			holdings.POST("/recompute", portfolioHandlers.RecomputeHolding)
			holdings.GET("/transactions", portfolioHandlers.ListTransactions)
			holdings.POST("/transactions", portfolioHandlers.CreateTransaction)
			holdings.DELETE("/transactions/:transactionId", portfolioHandlers.DeleteTransaction)
		}
	}

	return router
}
