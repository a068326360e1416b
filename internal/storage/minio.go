package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage presigns transfers against a MinIO (or any S3 compatible)
// endpoint using minio-go.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinIOStorage creates the client without contacting the server. The
// region is fixed so presigning never needs a bucket-location lookup.
func NewMinIOStorage(cfg config.StorageConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOStorage{client: mc, bucket: cfg.Bucket, region: region}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		exist, xerr := s.client.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

func (s *MinIOStorage) Bucket() string { return s.bucket }

func (s *MinIOStorage) PresignPut(ctx context.Context, objectPath, contentType string, expires time.Duration) (string, error) {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, objectPath, expires, nil, h)
	if err != nil {
		return "", fmt.Errorf("minio presign put %s: %w", objectPath, err)
	}
	return u.String(), nil
}

func (s *MinIOStorage) Stat(ctx context.Context, objectPath string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("minio stat %s: %w", objectPath, err)
	}
	return ObjectInfo{Size: info.Size, ContentType: info.ContentType, ETag: info.ETag}, nil
}

func (s *MinIOStorage) PresignGet(ctx context.Context, objectPath string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectPath, expires, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio presign get %s: %w", objectPath, err)
	}
	return u.String(), nil
}
