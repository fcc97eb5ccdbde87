package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campusmarket/internal/auth"
	"campusmarket/internal/config"
	"campusmarket/internal/db"
	internalhttp "campusmarket/internal/http"
	"campusmarket/internal/logger"
	"campusmarket/internal/repository"
	"campusmarket/internal/storage"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("db connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		zapLogger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			zapLogger.Fatal("redis ping failed", zap.Error(err))
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	files, err := storage.NewLocal(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		zapLogger.Fatal("storage init failed", zap.Error(err))
	}

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		zapLogger.Fatal("token codec init failed", zap.Error(err))
	}
	store := repository.NewStore(pool)
	authService := auth.NewService(store, codec, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.StepTokenTTL)

	server := internalhttp.NewServer(cfg, store, authService, redisClient, files, zapLogger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zapLogger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("shutdown error", zap.Error(err))
	}
}
