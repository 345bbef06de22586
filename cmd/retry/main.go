// Package main resets failed inventory rows back to found and re-runs the
// download phase over them.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoomvault/backup/config"
	"github.com/zoomvault/backup/internal/download"
	"github.com/zoomvault/backup/internal/inventory"
	"github.com/zoomvault/backup/internal/metadata"
	"github.com/zoomvault/backup/internal/models"
	"github.com/zoomvault/backup/internal/zoom"
	"github.com/zoomvault/backup/pkg/database"
	"github.com/zoomvault/backup/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	logger = logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("starting failed download retry", zap.String("version", cfg.Version))

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	invRepo := inventory.NewRepository(pool, cfg.Version)
	metaRepo := metadata.NewRepository(pool, cfg.Version)
	if err := invRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal("inventory schema", zap.Error(err))
	}
	if err := metaRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal("metadata schema", zap.Error(err))
	}

	failedBefore := failedCount(ctx, logger, invRepo)
	logger.Info("failed recordings before retry", zap.Int64("count", failedBefore))
	if failedBefore == 0 {
		logger.Info("nothing to retry")
		return
	}

	reset, err := invRepo.ResetFailed(ctx)
	if err != nil {
		logger.Fatal("reset failed recordings", zap.Error(err))
	}
	logger.Info("reset recordings to pending", zap.Int64("count", reset))

	tokens, err := zoom.NewTokenProvider(zoom.Credentials{
		AccountID:    cfg.Zoom.AccountID,
		ClientID:     cfg.Zoom.ClientID,
		ClientSecret: cfg.Zoom.ClientSecret,
	}, cfg.API.TokenRefreshBuffer, cfg.API.RequestTimeout, logger)
	if err != nil {
		logger.Fatal("token provider", zap.Error(err))
	}
	if _, err := tokens.Token(ctx); err != nil {
		logger.Fatal("acquire access token", zap.Error(err))
	}

	downloader := download.NewEngine(invRepo, metaRepo, tokens, newMirror(ctx, cfg, logger), download.Options{
		RootDir:    cfg.RootDir(),
		Retries:    cfg.API.Retries,
		RetryDelay: cfg.API.DownloadRetryDelay,
		Timeout:    cfg.API.DownloadTimeout,
		Extensions: cfg.FileExtensions,
	}, logger)
	report, err := downloader.Run(ctx)
	if err != nil {
		logger.Fatal("download phase", zap.Error(err))
	}

	failedAfter := failedCount(ctx, logger, invRepo)
	logger.Info("retry completed",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("status_write_failures", report.StatusWriteFailed),
		zap.Int64("failed_before", failedBefore),
		zap.Int64("failed_after", failedAfter),
		zap.Int64("recovered", failedBefore-failedAfter))
}

func failedCount(ctx context.Context, logger *zap.Logger, invRepo *inventory.Repository) int64 {
	counts, err := invRepo.StatusCounts(ctx)
	if err != nil {
		logger.Fatal("status counts", zap.Error(err))
	}
	for _, c := range counts {
		if c.Status == models.StatusFailed {
			return c.Count
		}
	}
	return 0
}

// newMirror returns the S3 mirror when a bucket is configured, else nil.
func newMirror(ctx context.Context, cfg *config.Config, logger *zap.Logger) download.Mirror {
	if cfg.AWS.MirrorBucket == "" {
		return nil
	}
	mirror, err := storage.NewS3Mirror(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.AWS.MirrorBucket,
	}, logger)
	if err != nil {
		logger.Fatal("s3 mirror", zap.Error(err))
	}
	return mirror
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := config.Build()
	if err != nil {
		os.Exit(1)
	}
	return logger
}
