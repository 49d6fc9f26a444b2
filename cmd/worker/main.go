// Package main runs the background job worker (bulk ingestion, thumbnail mirroring).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flixtube/catalog/config"
	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/ingest"
	"github.com/flixtube/catalog/internal/resolver"
	"github.com/flixtube/catalog/internal/worker"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	repo := catalog.NewRepository(pool)
	res := resolver.NewClient(resolver.Config{
		BaseURL:    cfg.Resolver.BaseURL,
		Timeout:    cfg.Resolver.Timeout,
		RatePerSec: cfg.Resolver.RatePerSec,
	}, logger)

	var thumbnails ingest.ThumbnailEnqueuer
	w := worker.New(jobQueue, logger)
	if cfg.AWS.MirrorEnabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:           cfg.AWS.Region,
			AccessKeyID:      cfg.AWS.AccessKeyID,
			SecretAccessKey:  cfg.AWS.SecretAccessKey,
			ThumbnailsBucket: cfg.AWS.ThumbnailsBucket,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		thumbnails = jobQueue
		w.Register(queue.JobTypeThumbnail, worker.NewThumbnailProcessor(s3Client, logger))
	} else {
		logger.Warn("thumbnail mirror disabled (AWS_REGION or AWS_S3_THUMBNAILS_BUCKET not set)")
	}
	w.Register(queue.JobTypeIngest, worker.NewIngestProcessor(ingest.NewService(repo, res, thumbnails, logger), logger))

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
