package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/internal/hash"
)

// Export writes the blocks of src as image name to dst. src must be open.
// The image is committed once the returned manifest has been written.
func Export(ctx context.Context, src blockdev.Store, dst blobstore.BlobStore, name string, optFns ...func(o *Options)) (*Manifest, error) {
	o := applyOptions(optFns)

	if !src.IsOpen() {
		return nil, blockdev.ErrNotOpen
	}
	if _, err := ReadManifest(ctx, dst, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrImageExists, name)
	} else if !errors.Is(err, ErrManifestNotFound) {
		return nil, err
	}

	start := time.Now()
	blocks := src.Size()
	m := &Manifest{
		Version:     FormatVersion,
		Name:        name,
		BlockSize:   blockdev.BlockSize,
		Blocks:      blocks,
		ChunkBlocks: o.ChunkBlocks,
		Compression: o.Compression,
		CreatedAt:   start.UTC(),
		Chunks:      make([]Chunk, (blocks+o.ChunkBlocks-1)/o.ChunkBlocks),
	}

	sum := hash.NewCRC32C()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)

	// Reads stay sequential. Compression and upload run in the group.
	for i := range m.Chunks {
		if gctx.Err() != nil {
			break
		}

		first := i * o.ChunkBlocks
		n := min(o.ChunkBlocks, blocks-first)
		data, err := readChunk(src, first, n)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("read chunk %d: %w", i, err)
		}
		_, _ = sum.Write(data)

		c := &m.Chunks[i]
		*c = Chunk{Index: i, FirstBlock: first, Blocks: n, CRC32C: hash.CRC32C(data)}
		if isZero(data) {
			c.Zero = true
			continue
		}

		g.Go(func() error {
			payload, err := compressChunk(data, o.Compression)
			if err != nil {
				return fmt.Errorf("compress chunk %d: %w", c.Index, err)
			}
			if err := o.Resource.AcquireIO(gctx, len(payload)); err != nil {
				return err
			}
			if err := writeBlob(gctx, dst, chunkPath(name, c.Index), payload); err != nil {
				return fmt.Errorf("write chunk %d: %w", c.Index, err)
			}
			c.StoredSize = int64(len(payload))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.CRC32C = sum.Sum32()
	if err := writeManifest(ctx, dst, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	o.Logger.Info("image exported",
		"name", name,
		"blocks", m.Blocks,
		"chunks", len(m.Chunks),
		"stored_bytes", m.StoredBytes(),
		"compression", m.Compression.String(),
		"duration", time.Since(start),
	)
	return m, nil
}

// Delete removes image name. The manifest goes first so a partially deleted
// image is never visible.
func Delete(ctx context.Context, dst blobstore.BlobStore, name string) error {
	if err := dst.Delete(ctx, manifestPath(name)); err != nil {
		return err
	}
	chunks, err := dst.List(ctx, chunkDir(name))
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := dst.Delete(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func readChunk(src blockdev.Store, first, n int) ([]byte, error) {
	data := make([]byte, 0, n*blockdev.BlockSize)
	for id := first; id < first+n; id++ {
		b, err := src.ReadBlock(id)
		if err != nil {
			return nil, err
		}
		data = append(data, b...)
	}
	return data, nil
}

func writeBlob(ctx context.Context, dst blobstore.BlobStore, name string, data []byte) error {
	w, err := dst.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		// A partial chunk is unreachable without a manifest.
		_ = w.Close()
		return err
	}
	return w.Close()
}

func isZero(b []byte) bool {
	return len(bytes.TrimLeft(b, "\x00")) == 0
}
