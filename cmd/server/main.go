package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/coinview/backend/internal/cache"
	"github.com/coinview/backend/internal/db"
	"github.com/coinview/backend/internal/handlers"
	"github.com/coinview/backend/internal/logger"
	"github.com/coinview/backend/internal/providers"
	"github.com/coinview/backend/internal/repositories"
	"github.com/coinview/backend/internal/services"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	zapLog, err := logger.New()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zapLog.Sync()

	// Database connection
	config := db.NewConfig()
	database, err := db.Connect(config)
	if err != nil {
		zapLog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Health(); err != nil {
		zapLog.Fatal("Database health check failed", zap.Error(err))
	}
	if err := database.Migrate(); err != nil {
		zapLog.Fatal("Database migration failed", zap.Error(err))
	}
	zapLog.Info("Database connection established", zap.String("driver", config.Driver))

	// Market data providers
	coincapConfig := providers.DefaultCoinCapConfig()
	coincapConfig.APIKey = os.Getenv("COINCAP_API_KEY")
	coingeckoConfig := providers.DefaultCoinGeckoConfig()
	coingeckoConfig.DemoAPIKey = os.Getenv("COINGECKO_API_KEY")

	coincap := providers.NewCoinCapClient(coincapConfig, zapLog)
	coingecko := providers.NewCoinGeckoClient(coingeckoConfig, zapLog)

	// Snapshot cache backed by redis when configured, process memory otherwise.
	var store cache.SnapshotStore
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisStore, err := cache.NewRedisStore(addr, os.Getenv("REDIS_PASSWORD"), envInt("REDIS_DB", 0))
		if err != nil {
			zapLog.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisStore.Close()
		store = redisStore
		zapLog.Info("Using redis snapshot store", zap.String("addr", addr))
	} else {
		store = cache.NewMemoryStore()
	}
	marketCache := cache.NewMarketCache(store, cache.DefaultMarketTTL, zapLog)

	// Repositories
	userRepo := repositories.NewUserRepository(database)
	walletRepo := repositories.NewWalletRepository(database)
	commandRepo := repositories.NewDeviceCommandRepository(database)

	// Services
	resolver := services.NewCoinIDResolver(coingecko, zapLog)
	marketService := services.NewMarketService(coincap, coingecko, resolver, marketCache, zapLog)
	walletService := services.NewWalletService(walletRepo, marketService, zapLog)
	sessionTTL := time.Duration(envInt("SESSION_TOKEN_TTL_HOURS", 24)) * time.Hour
	userService := services.NewUserService(userRepo, sessionTTL, zapLog)
	commandService := services.NewDeviceCommandService(commandRepo, zapLog)

	router := handlers.NewRouter(userService, marketService, walletService, commandService, zapLog)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		zapLog.Info("Server starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zapLog.Error("Forced shutdown", zap.Error(err))
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
