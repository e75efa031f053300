package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Keys(t *testing.T) {
	for _, tc := range []struct {
		prefix, name, want string
	}{
		{"", "manifest.json", "manifest.json"},
		{"volumes", "manifest.json", "volumes/manifest.json"},
		{"volumes/", "a/chunk", "volumes/a/chunk"},
		{"/volumes/", "x", "volumes/x"},
	} {
		s := NewStore(nil, "bucket", tc.prefix)
		assert.Equal(t, tc.want, s.key(tc.name))
	}
}

func TestBlob_Bounds(t *testing.T) {
	ctx := context.Background()
	b := &minioBlob{bucket: "bucket", key: "k", size: 4}

	n, err := b.ReadAt(ctx, make([]byte, 2), 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	n, err = b.ReadAt(ctx, nil, 0)
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = b.ReadRange(ctx, 10, 1)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 0, 0)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, data)
}

// TestMinioStore_Integration requires a running MinIO instance.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}

	ctx := context.Background()

	store, err := New(endpoint, "test-clusterfs", func(o *Options) {
		o.AccessKey = "minioadmin"
		o.SecretKey = "minioadmin"
		o.Prefix = "test-prefix/"
	})
	require.NoError(t, err)

	if err := store.EnsureBucket(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "test.txt", data))

	blob, err := store.Open(ctx, "test.txt")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.txt")

	require.NoError(t, store.Delete(ctx, "test.txt"))
	require.NoError(t, store.Delete(ctx, "test.txt"))

	_, err = store.Open(ctx, "test.txt")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	wb, err := store.Create(ctx, "stream.txt")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	got, err := blobstore.ReadAll(ctx, store, "stream.txt")
	require.NoError(t, err)
	assert.Equal(t, "streamed data", string(got))

	_ = store.Delete(ctx, "stream.txt")
}
