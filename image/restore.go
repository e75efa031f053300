package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/internal/hash"
)

// Restore writes image name from src into dst. dst must be open. A smaller
// destination is grown when it implements blockdev.Resizer. Every chunk is
// fetched and verified before the first block is written.
func Restore(ctx context.Context, src blobstore.BlobStore, name string, dst blockdev.Store, optFns ...func(o *Options)) (*Manifest, error) {
	o := applyOptions(optFns)

	if !dst.IsOpen() {
		return nil, blockdev.ErrNotOpen
	}

	start := time.Now()
	m, err := ReadManifest(ctx, src, name)
	if err != nil {
		return nil, err
	}

	raw := m.RawBytes()
	if err := o.Resource.AcquireMemory(raw); err != nil {
		return nil, fmt.Errorf("restore buffer of %d bytes: %w", raw, err)
	}
	defer o.Resource.ReleaseMemory(raw)

	chunks, err := fetchChunks(ctx, src, m, o)
	if err != nil {
		return nil, err
	}

	sum := hash.NewCRC32C()
	for _, data := range chunks {
		_, _ = sum.Write(data)
	}
	if got := sum.Sum32(); got != m.CRC32C {
		return nil, &ErrChecksumMismatch{Chunk: manifestPath(name), Want: m.CRC32C, Got: got}
	}

	if dst.Size() < m.Blocks {
		r, ok := dst.(blockdev.Resizer)
		if !ok {
			return nil, fmt.Errorf("%w: %d blocks, image has %d", ErrDestinationTooSmall, dst.Size(), m.Blocks)
		}
		if err := r.SetSize(m.Blocks); err != nil {
			return nil, fmt.Errorf("grow destination: %w", err)
		}
	}

	for i, data := range chunks {
		first := m.Chunks[i].FirstBlock
		for j := 0; j < m.Chunks[i].Blocks; j++ {
			off := j * blockdev.BlockSize
			if err := dst.WriteBlock(first+j, data[off:off+blockdev.BlockSize]); err != nil {
				return nil, fmt.Errorf("write block %d: %w", first+j, err)
			}
		}
	}
	if err := dst.Sync(); err != nil {
		return nil, err
	}

	o.Logger.Info("image restored",
		"name", name,
		"blocks", m.Blocks,
		"chunks", len(m.Chunks),
		"duration", time.Since(start),
	)
	return m, nil
}

// Verify fetches every chunk of image name and checks it against the manifest
// without writing anything.
func Verify(ctx context.Context, src blobstore.BlobStore, name string, optFns ...func(o *Options)) (*Manifest, error) {
	o := applyOptions(optFns)

	m, err := ReadManifest(ctx, src, name)
	if err != nil {
		return nil, err
	}
	if _, err := fetchChunks(ctx, src, m, o); err != nil {
		return nil, err
	}
	return m, nil
}

// fetchChunks downloads, decompresses and verifies every chunk of m.
func fetchChunks(ctx context.Context, src blobstore.BlobStore, m *Manifest, o Options) ([][]byte, error) {
	chunks := make([][]byte, len(m.Chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)

	for i := range m.Chunks {
		c := m.Chunks[i]
		want := c.Blocks * blockdev.BlockSize

		if c.Zero {
			chunks[i] = make([]byte, want)
			continue
		}

		g.Go(func() error {
			if err := o.Resource.AcquireIO(gctx, int(c.StoredSize)); err != nil {
				return err
			}

			name := chunkPath(m.Name, c.Index)
			payload, err := blobstore.ReadAll(gctx, src, name)
			if err != nil {
				if errors.Is(err, blobstore.ErrNotFound) {
					return fmt.Errorf("%w: missing %s", ErrCorruptImage, name)
				}
				return err
			}

			data, err := decompressChunk(payload, m.Compression)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrCorruptImage, name, err)
			}
			if len(data) != want {
				return fmt.Errorf("%w: %s holds %d bytes, want %d", ErrCorruptImage, name, len(data), want)
			}
			if got := hash.CRC32C(data); got != c.CRC32C {
				return &ErrChecksumMismatch{Chunk: name, Want: c.CRC32C, Got: got}
			}

			chunks[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range m.Chunks {
		if c.Zero && hash.CRC32C(chunks[i]) != c.CRC32C {
			return nil, &ErrChecksumMismatch{Chunk: chunkPath(m.Name, c.Index), Want: c.CRC32C, Got: hash.CRC32C(chunks[i])}
		}
	}
	return chunks, nil
}
