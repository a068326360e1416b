package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/config"
)

// ErrObjectNotFound is returned by Stat when no object exists at the path.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the metadata the API needs to register an attachment.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ETag        string
}

// Backend is an object store that can authorize direct client transfers.
// The server never proxies upload bytes.
type Backend interface {
	Bucket() string
	// PresignPut returns a URL that accepts one PUT of objectPath carrying
	// exactly contentType until expires elapses.
	PresignPut(ctx context.Context, objectPath, contentType string, expires time.Duration) (string, error)
	Stat(ctx context.Context, objectPath string) (ObjectInfo, error)
	PresignGet(ctx context.Context, objectPath string, expires time.Duration) (string, error)
}

// New builds the backend named by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(cfg.Bucket, cfg.PublicBaseURL, []byte(cfg.SigningSecret), nil).LimitObjectSize(cfg.MaxObjectBytes), nil
	case "minio":
		return NewMinIOStorage(cfg)
	case "s3":
		return NewS3Storage(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}
