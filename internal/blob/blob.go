// Package blob reads and writes serialized value payloads held in object storage.
package blob

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"dataflow-gateway/internal/config"
	"dataflow-gateway/internal/engine"
)

// maxObjectBytes caps how much of a single payload is read into memory.
const maxObjectBytes = 25 * 1024 * 1024

// Store is an object store addressed by slash-separated keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// New chooses a store implementation from cfg.BlobBackend.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch strings.ToLower(cfg.BlobBackend) {
	case "", "local":
		return NewLocalFS(cfg.BlobLocalRoot), nil
	case "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinIO(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
}

func notFound(key string) error {
	return fmt.Errorf("object %q: %w", key, engine.ErrNotFound)
}

func sanitizeKey(key string) string {
	key = filepath.ToSlash(filepath.Clean("/" + key))
	return strings.TrimPrefix(key, "/")
}
