// Package storage provides the optional S3 mirror for downloaded recordings.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Config holds S3 mirror configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// S3Mirror streams local recording files to an S3 bucket after they are
// confirmed on disk. Mirroring is best-effort: callers log failures and
// continue, the local copy stays authoritative.
type S3Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3Mirror creates an S3 mirror client using credentials from config or the
// default AWS credential chain.
func NewS3Mirror(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: mirror bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	} else {
		logger.Warn("S3 mirror using default credential chain")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})

	logger.Info("S3 mirror enabled", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
	return &S3Mirror{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// MirrorKey builds the object key for a mirrored recording.
func MirrorKey(dataType, userEmail, filename string) string {
	return path.Join(dataType, userEmail, filename)
}

// MirrorFile streams a local file to s3://{bucket}/{dataType}/{userEmail}/{filename}.
func (m *S3Mirror) MirrorFile(ctx context.Context, localPath, dataType, userEmail, filename string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := MirrorKey(dataType, userEmail, filename)
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	m.logger.Debug("mirrored file to S3", zap.String("key", key))
	return nil
}
