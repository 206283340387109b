package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/api/handlers"
	"github.com/cryptofolio/cryptofolio/internal/api/routes"
	"github.com/cryptofolio/cryptofolio/internal/domain/services/portfolio"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/cache"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/config"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/database"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/pricing"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/repositories"
	"github.com/cryptofolio/cryptofolio/internal/workers/refresher"
	"github.com/cryptofolio/cryptofolio/pkg/health"
	"github.com/cryptofolio/cryptofolio/pkg/jobqueue"
	"github.com/cryptofolio/cryptofolio/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL, "migrations", log); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Repositories
	holdingRepo := repositories.NewHoldingRepository(db, log.Zap())
	txRepo := repositories.NewTransactionRepository(db, log.Zap())

	// Price oracle behind a redis cache
	priceCache := cache.NewPriceCache(
		redisClient,
		time.Duration(cfg.CoinGecko.CurrentPriceTTL)*time.Second,
		time.Duration(cfg.CoinGecko.HistoricalTTL)*time.Second,
		log,
	)
	oracle := pricing.NewCoinGeckoClient(&cfg.CoinGecko, priceCache, log)

	// Analytics engine
	engine := portfolio.NewService(holdingRepo, txRepo, oracle, portfolio.Config{
		LookupConcurrency: cfg.Analytics.LookupConcurrency,
		ReturnWindowDays:  cfg.Analytics.ReturnWindowDays,
		BenchmarkSymbols:  cfg.Analytics.BenchmarkSymbols,
		OracleTimeout:     time.Duration(cfg.CoinGecko.TimeoutSeconds) * time.Second,
	}, log)

	// Health checks
	checker := health.NewHealthChecker(10 * time.Second)
	checker.Register(health.NewDatabaseChecker(db, 5*time.Second))
	checker.Register(health.NewRedisChecker(redisClient, 3*time.Second))

	// HTTP layer
	portfolioHandlers := handlers.NewPortfolioHandlers(engine, holdingRepo, txRepo, log)
	healthHandlers := handlers.NewHealthHandlers(checker, version)
	router := routes.SetupRoutes(cfg, portfolioHandlers, healthHandlers, log)

	// Price refresh worker
	scheduler := jobqueue.NewJobScheduler(log.Zap())
	worker := refresher.NewWorker(engine, scheduler, cfg.Refresher, log)
	if err := worker.Register(); err != nil {
		log.Fatal("Failed to register price refresher", "error", err)
	}
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}
