package image

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/goccy/go-json"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/hupe1980/clusterfs/blockdev"
)

const (
	// ManifestName is the blob name of the manifest below an image.
	ManifestName = "manifest.json"
	// FormatVersion is the manifest version written by Export.
	FormatVersion = 1
)

// Manifest describes a committed image.
type Manifest struct {
	Version     int         `json:"version"`
	Name        string      `json:"name"`
	BlockSize   int         `json:"block_size"`
	Blocks      int         `json:"blocks"`
	ChunkBlocks int         `json:"chunk_blocks"`
	Compression Compression `json:"compression"`
	CreatedAt   time.Time   `json:"created_at"`
	// CRC32C is the checksum of the whole uncompressed image.
	CRC32C uint32  `json:"crc32c"`
	Chunks []Chunk `json:"chunks"`
}

// Chunk describes one run of blocks.
type Chunk struct {
	Index      int    `json:"index"`
	FirstBlock int    `json:"first_block"`
	Blocks     int    `json:"blocks"`
	CRC32C     uint32 `json:"crc32c"`
	// StoredSize is the payload size in the blob store. Zero chunks are not stored.
	StoredSize int64 `json:"stored_size"`
	Zero       bool  `json:"zero,omitempty"`
}

// StoredBytes returns the total payload size of all chunks.
func (m *Manifest) StoredBytes() int64 {
	var n int64
	for _, c := range m.Chunks {
		n += c.StoredSize
	}
	return n
}

// RawBytes returns the uncompressed image size.
func (m *Manifest) RawBytes() int64 {
	return int64(m.Blocks) * int64(m.BlockSize)
}

func (m *Manifest) validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: manifest version %d", ErrCorruptImage, m.Version)
	}
	if m.BlockSize != blockdev.BlockSize {
		return fmt.Errorf("%w: block size %d", ErrCorruptImage, m.BlockSize)
	}
	if m.Blocks <= 0 || m.ChunkBlocks <= 0 {
		return fmt.Errorf("%w: %d blocks in chunks of %d", ErrCorruptImage, m.Blocks, m.ChunkBlocks)
	}

	next := 0
	for i, c := range m.Chunks {
		if c.Index != i || c.FirstBlock != next || c.Blocks <= 0 || c.Blocks > m.ChunkBlocks {
			return fmt.Errorf("%w: chunk %d out of sequence", ErrCorruptImage, i)
		}
		next += c.Blocks
	}
	if next != m.Blocks {
		return fmt.Errorf("%w: chunks cover %d of %d blocks", ErrCorruptImage, next, m.Blocks)
	}
	return nil
}

func manifestPath(name string) string {
	return path.Join(name, ManifestName)
}

func chunkDir(name string) string {
	return path.Join(name, "chunks") + "/"
}

func chunkPath(name string, index int) string {
	return chunkDir(name) + fmt.Sprintf("%06d", index)
}

// ReadManifest loads and validates the manifest of image name.
func ReadManifest(ctx context.Context, src blobstore.BlobStore, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, src, manifestPath(name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, name)
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeManifest(ctx context.Context, dst blobstore.BlobStore, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return dst.Put(ctx, manifestPath(m.Name), data)
}
