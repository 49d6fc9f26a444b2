// Package main runs the catalog HTTP API with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flixtube/catalog/config"
	"github.com/flixtube/catalog/internal/auth"
	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/ingest"
	"github.com/flixtube/catalog/internal/recommend"
	"github.com/flixtube/catalog/internal/resolver"
	"github.com/flixtube/catalog/internal/server"
	"github.com/flixtube/catalog/pkg/database"
	"github.com/flixtube/catalog/pkg/queue"
	"github.com/flixtube/catalog/pkg/redis"
	"github.com/flixtube/catalog/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	repo := catalog.NewRepository(pool)
	res := resolver.NewClient(resolver.Config{
		BaseURL:    cfg.Resolver.BaseURL,
		Timeout:    cfg.Resolver.Timeout,
		RatePerSec: cfg.Resolver.RatePerSec,
	}, logger)

	// Redis backs the index cache and the job queue; without it both are off.
	var (
		indexCache recommend.IndexCache
		jobs       ingest.JobEnqueuer
		thumbnails ingest.ThumbnailEnqueuer
	)
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable: index cache and job queue disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue := queue.NewQueue(rdb.Client, logger)
		indexCache = recommend.NewRedisIndexCache(rdb.Client)
		jobs = jobQueue
		if cfg.AWS.MirrorEnabled() {
			thumbnails = jobQueue
		}
	}

	var mirrorURL func(string) string
	if cfg.AWS.MirrorEnabled() {
		mirrorURL = storage.ThumbnailMirrorURL(cfg.AWS.ThumbnailsBucket, cfg.AWS.Region)
	}

	var jwtService *auth.JWTService
	if cfg.JWT.Secret != "" {
		jwtService = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	}

	router := server.NewRouter(server.Deps{
		Catalog:     repo,
		Ingest:      ingest.NewService(repo, res, thumbnails, logger),
		Jobs:        jobs,
		Recommender: recommend.NewService(repo, indexCache, cfg.Recommend.CacheTTL, cfg.Recommend.DefaultK, logger),
		JWT:         jwtService,
		MirrorURL:   mirrorURL,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
