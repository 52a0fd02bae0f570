package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/helixml/damkit/domain/asset"
)

// MinioConfig configures a MinIO (or any S3-compatible) bucket.
type MinioConfig struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore keeps objects in a MinIO bucket.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	maxRetries int
}

// NewMinioStore connects to MinIO and creates the bucket when missing.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &MinioStore{client: client, bucket: cfg.Bucket, maxRetries: 3}
	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads r under key.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Get opens key.
func (s *MinioStore) Get(ctx context.Context, key string) (asset.Object, error) {
	var info minio.ObjectInfo
	err := retryWithBackoff(ctx, s.maxRetries, func() error {
		var statErr error
		info, statErr = s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		return mapMinioError(key, statErr)
	})
	if err != nil {
		return asset.Object{}, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return asset.Object{}, mapMinioError(key, err)
	}
	return asset.Object{Body: obj, ContentType: info.ContentType, Size: info.Size}, nil
}

// Move copies from to to, then removes from.
func (s *MinioStore) Move(ctx context.Context, from, to string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: to},
		minio.CopySrcOptions{Bucket: s.bucket, Object: from},
	)
	if err != nil {
		return mapMinioError(from, err)
	}
	return s.Delete(ctx, from)
}

// Delete removes key.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	return retryWithBackoff(ctx, s.maxRetries, func() error {
		return mapMinioError(key, s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}))
	})
}

// SignedURL presigns a GET for key.
func (s *MinioStore) SignedURL(ctx context.Context, key string, ttl time.Duration, disposition string) (string, error) {
	params := url.Values{}
	if disposition != "" {
		params.Set("response-content-disposition", disposition)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func mapMinioError(key string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("object %s: %w", key, err)
}

var _ asset.ObjectStore = (*MinioStore)(nil)
