package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/config"
	"github.com/creatorhub/backend/internal/database"
	"github.com/creatorhub/backend/internal/handlers"
	"github.com/creatorhub/backend/internal/services"
	"github.com/creatorhub/backend/internal/store"
)

// @title Creator Wallet API
// @version 1.0
// @description Wallet balances, creator payments and earnings insights
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	logger := newLogger()
	defer logger.Sync()

	loadConfig(logger)

	ctx := context.Background()

	// Initialize storage
	db := database.InitDatabase(ctx, logger)
	defer db.Close()

	redisClient := database.InitRedis(ctx, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerCfg := config.LoadLedgerConfig()
	st := store.NewPostgresStore(db)
	publisher := services.NewRedisEventPublisher(redisClient, ledgerCfg.EventQueue, ledgerCfg.EventChannel, logger)

	ledger := services.NewLedgerService(st, publisher, ledgerCfg, logger)
	r := handlers.NewRouter(handlers.Dependencies{
		Ledger:     ledger,
		Insights:   services.NewInsightService(st, logger),
		Reconciler: services.NewReconciliationService(st, logger),
		Webhooks:   services.NewWebhookService(ledger, logger),
		Logger:     logger,
	})

	port := viper.GetString("port")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("APP_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig(logger *zap.Logger) {
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.SetConfigType("env")
	viper.AutomaticEnv() // allow environment variables to override .env

	viper.BindEnv("port", "PORT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		logger.Info("config file not found, using environment", zap.Error(err))
	}
	if viper.GetString("jwt.secret_key") == "" {
		logger.Warn("JWT_SECRET_KEY is empty, every bearer token will be rejected")
	}
}
