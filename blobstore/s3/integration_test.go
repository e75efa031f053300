package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_S3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test-clusterfs-%d/", time.Now().UnixNano())

	store, err := New(ctx, bucket, func(o *Options) {
		o.Prefix = prefix
		o.Endpoint = os.Getenv("S3_ENDPOINT")
		o.UsePathStyle = o.Endpoint != ""
	})
	require.NoError(t, err)

	name := "test.blob"
	data := make([]byte, 1024*1024)
	_, _ = rand.Read(data)

	w, err := store.Create(ctx, name)
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	require.NoError(t, w.Close())

	blobs, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, blobs, name)

	got, err := blobstore.ReadAll(ctx, store, name)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	r, err := store.Open(ctx, name)
	require.NoError(t, err)
	buf := make([]byte, 100)
	_, err = r.ReadAt(ctx, buf, int64(len(data))-50)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())

	require.NoError(t, store.Put(ctx, "small", []byte("abc")))
	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, "small"))

	_, err = store.Open(ctx, name)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
