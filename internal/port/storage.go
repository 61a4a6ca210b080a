package port

import (
	"context"
	"io"
	"time"
)

// ArchiveObject describes an original upload to archive.
type ArchiveObject struct {
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// ObjectStorage archives original contract uploads in a single bucket.
type ObjectStorage interface {
	Put(ctx context.Context, obj ArchiveObject) (location string, err error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
