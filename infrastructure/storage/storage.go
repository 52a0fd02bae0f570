// Package storage provides object storage backends for asset bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/helixml/damkit/domain/asset"
	"github.com/helixml/damkit/internal/config"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidKey       = errors.New("invalid object key")
	ErrInvalidSignature = errors.New("invalid or expired signature")
)

// Options carries values the factory cannot read from StorageConfig.
type Options struct {
	// Dir is the local storage root.
	Dir string
	// FilesPath is the route that serves local signed URLs.
	FilesPath string
}

// New builds the object store selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig, opts Options) (asset.ObjectStore, error) {
	switch cfg.Backend() {
	case config.StorageMinio:
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:  cfg.Endpoint(),
			Region:    cfg.Region(),
			Bucket:    cfg.Bucket(),
			AccessKey: cfg.AccessKey(),
			SecretKey: cfg.SecretKey(),
			UseSSL:    cfg.UseSSL(),
		})
	case config.StorageS3:
		return NewS3Store(ctx, S3Config{
			Endpoint:  cfg.Endpoint(),
			Region:    cfg.Region(),
			Bucket:    cfg.Bucket(),
			AccessKey: cfg.AccessKey(),
			SecretKey: cfg.SecretKey(),
		})
	case config.StorageLocal, "":
		return NewLocalStore(LocalConfig{
			Dir:        opts.Dir,
			BaseURL:    cfg.PublicURL() + opts.FilesPath,
			SigningKey: cfg.SigningKey(),
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend())
	}
}

// retryWithBackoff retries operation with exponential backoff until it
// succeeds, returns ErrObjectNotFound, or maxRetries is exhausted.
func retryWithBackoff(ctx context.Context, maxRetries int, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
