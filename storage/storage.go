package storage

import (
	"context"
	"io"
)

type PutResult struct {
	Key      string
	Location string
	ETag     string
}

// ObjectStorage - S3-совместимое хранилище архивов результатов.
type ObjectStorage interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (*PutResult, error)

	Delete(ctx context.Context, key string) error

	PublicURL(key string) string
}
