package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/poolmind/poolmind/internal/api"
	"github.com/poolmind/poolmind/internal/db"
	"github.com/poolmind/poolmind/internal/mcp"
	"github.com/poolmind/poolmind/internal/middleware"
	"github.com/poolmind/poolmind/internal/payment"
	"github.com/poolmind/poolmind/internal/services"
	"github.com/poolmind/poolmind/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		sugar.Fatalw("postgres connect failed", "error", err)
	}
	defer postgres.Close()

	if err := postgres.Ping(ctx); err != nil {
		sugar.Fatalw("postgres ping failed", "error", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		sugar.Fatalw("postgres ensure schema failed", "error", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr == "" {
		sugar.Info("REDIS_ADDR not set, pool metrics cache disabled")
	} else if redisClient, err = db.NewRedisClient(ctx, cfg.Redis.Addr); err != nil {
		// Redis only backs the metrics cache; run without it.
		sugar.Warnw("redis unavailable, pool metrics cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	mcpClient := mcp.NewClient(cfg.MCP, sugar)
	creditsService := services.NewCreditsService(mcpClient, sugar)
	poolService := services.NewPoolService(mcpClient, redisClient, cfg.Redis.MetricsTTL, sugar)
	verifier := payment.NewVerifier(cfg.Payment, sugar)
	assistantRouter := services.NewAssistantRouter(poolService, sugar)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, sugar)
	stopCleanup := make(chan struct{})
	rateLimiter.StartCleanup(cfg.RateLimit.CleanupInterval, stopCleanup)
	defer close(stopCleanup)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	handler := api.NewHandler(postgres, creditsService, verifier, assistantRouter, sugar)
	handler.RegisterRoutes(router, rateLimiter.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}
