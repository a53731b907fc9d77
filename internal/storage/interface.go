package storage

import (
	"context"
	"io"
	"time"
)

// FileStore defines the file operations handlers depend on.
// This interface allows for easy mocking in tests
type FileStore interface {
	Upload(ctx context.Context, r io.Reader, filename string) (*File, error)
	Stat(ctx context.Context, id string) (*File, error)
	Delete(ctx context.Context, id string) error
	SignedURL(ctx context.Context, id string, ttl time.Duration) (string, error)
	PublicURL(id string) string
}

// Ensure BucketStore implements FileStore
var _ FileStore = (*BucketStore)(nil)
