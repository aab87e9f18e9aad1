package adapter

import (
	"context"
	"io"
)

// ObjectStore is the port for uploaded binary content. Get returns
// domain.ErrObjectMissing when the key does not exist.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType, originalName string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
