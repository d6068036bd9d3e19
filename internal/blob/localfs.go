package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFS stores objects as files under Root.
type LocalFS struct {
	Root string
}

func NewLocalFS(root string) LocalFS {
	if root == "" {
		root = "./data"
	}
	return LocalFS{Root: root}
}

func (l LocalFS) path(key string) string {
	return filepath.Join(l.Root, filepath.FromSlash(sanitizeKey(key)))
}

func (l LocalFS) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	abs := l.path(key)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(abs, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return sanitizeKey(key), nil
}

func (l LocalFS) Get(_ context.Context, key string) ([]byte, error) {
	f, err := os.Open(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func (l LocalFS) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if int64(len(body)) > maxObjectBytes {
		return nil, fmt.Errorf("object too large (>%d bytes)", maxObjectBytes)
	}
	return body, nil
}
