// Package artifact uploads fetched documents to S3-compatible storage.
// Uploads are best-effort: the pipeline records the location when it
// succeeds and carries on when it does not.
package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/billscan/billscan/internal/common"
)

// S3Uploader stores fetched documents under uploads/<job_id>.<ext>.
type S3Uploader struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

func NewS3Uploader(ctx context.Context, cfg common.S3Config, logger *slog.Logger) (*S3Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Uploader{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket, logger: logger}, nil
}

// validateKey rejects storage keys containing path traversal segments.
func validateKey(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected in storage key")
		}
	}
	return nil
}

// Upload puts the local file at path under key and returns the
// s3://bucket/key location.
func (u *S3Uploader) Upload(ctx context.Context, key, path string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			u.logger.Warn("artifact.close_error", "path", path, "error", err)
		}
	}()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &u.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object failed: %w", err)
	}

	loc := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.logger.Info("artifact.uploaded",
		"location", loc,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return loc, nil
}
