// Package main runs a full backup: discover every user's cloud recordings into
// the inventory, then download everything still marked found.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoomvault/backup/config"
	"github.com/zoomvault/backup/internal/discovery"
	"github.com/zoomvault/backup/internal/download"
	"github.com/zoomvault/backup/internal/inventory"
	"github.com/zoomvault/backup/internal/metadata"
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

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("starting backup process", zap.String("version", cfg.Version))

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

	client := zoom.NewClient(zoom.ClientConfig{
		Retries:           cfg.API.Retries,
		RateLimitDelay:    cfg.API.RateLimitDelay,
		RetryDelay:        cfg.API.RetryDelay,
		RateLimitSleep:    cfg.API.RateLimitSleep,
		TokenRefreshSleep: cfg.API.TokenRefreshSleep,
		RequestTimeout:    cfg.API.RequestTimeout,
	}, tokens, logger)

	users, err := client.ListUsers(ctx, cfg.API.PageSizeUsers)
	if err != nil {
		logger.Fatal("list users", zap.Error(err))
	}
	logger.Info("found users to process", zap.Int("count", len(users)))

	discoverer := discovery.NewEngine(client, invRepo, discovery.Options{
		StartDate:          cfg.Dates.StartDate,
		MonthsPerRange:     cfg.Processing.MonthsPerRange,
		PageSizeRecordings: cfg.API.PageSizeRecordings,
		PageSizePhone:      cfg.API.PageSizePhone,
		IncludeWebinars:    cfg.Processing.BackupWebinars,
		AuditFrom:          cfg.Dates.AuditFrom,
		AuditTo:            cfg.Dates.AuditTo,
	}, logger)
	if err := discoverer.Run(ctx, users); err != nil {
		logger.Fatal("discovery phase", zap.Error(err))
	}

	downloader := download.NewEngine(invRepo, metaRepo, tokens, newMirror(ctx, cfg, logger), download.Options{
		RootDir:    cfg.RootDir(),
		Retries:    cfg.API.Retries,
		RetryDelay: cfg.API.DownloadRetryDelay,
		Timeout:    cfg.API.DownloadTimeout,
		Extensions: cfg.FileExtensions,
	}, logger)
	if _, err := downloader.Run(ctx); err != nil {
		logger.Fatal("download phase", zap.Error(err))
	}

	logSummary(ctx, logger, invRepo, metaRepo)
	logger.Info("backup process completed")
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

func logSummary(ctx context.Context, logger *zap.Logger, invRepo *inventory.Repository, metaRepo *metadata.Repository) {
	statuses, err := invRepo.StatusCounts(ctx)
	if err != nil {
		logger.Error("status summary", zap.Error(err))
		return
	}
	var total int64
	for _, s := range statuses {
		total += s.Count
		logger.Info("inventory status", zap.String("status", s.Status), zap.Int64("count", s.Count))
	}
	logger.Info("inventory total", zap.Int64("count", total))

	years, err := invRepo.YearDistribution(ctx)
	if err != nil {
		logger.Error("year distribution", zap.Error(err))
		return
	}
	for _, y := range years {
		logger.Info("inventory by year",
			zap.Int("year", y.Year),
			zap.String("type", y.RecordingType),
			zap.Int64("count", y.Count))
	}

	downloads, err := metaRepo.DownloadCounts(ctx)
	if err != nil {
		logger.Error("download counts", zap.Error(err))
		return
	}
	for dataType, count := range downloads {
		logger.Info("downloaded recordings on record",
			zap.String("type", dataType), zap.Int64("count", count))
	}
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
