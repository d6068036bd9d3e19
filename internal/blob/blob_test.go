package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dataflow-gateway/internal/config"
	"dataflow-gateway/internal/engine"
)

func TestLocalFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalFS(root)

	key, err := store.Put(ctx, "values/abc/payload.json", []byte(`{"a":1}`), "application/json")
	require.NoError(t, err)
	require.Equal(t, "values/abc/payload.json", key)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	body, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(body))

	_, err = store.Get(ctx, "values/missing")
	require.True(t, errors.Is(err, engine.ErrNotFound), "unexpected error %v", err)

	ok, err = store.Exists(ctx, "values/missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalFSKeysStayUnderRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalFS(filepath.Join(root, "blobs"))

	key, err := store.Put(ctx, "../../escape.txt", []byte("x"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, "escape.txt", key)

	_, err = os.Stat(filepath.Join(root, "blobs", "escape.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestNewPicksBackend(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, config.Config{BlobBackend: "local", BlobLocalRoot: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, LocalFS{}, s)

	_, err = New(ctx, config.Config{BlobBackend: "s3"})
	require.Error(t, err, "s3 without a bucket must be rejected")

	_, err = New(ctx, config.Config{BlobBackend: "tape"})
	require.Error(t, err)
}
