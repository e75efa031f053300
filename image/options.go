package image

import (
	"io"
	"log/slog"

	"github.com/hupe1980/clusterfs/internal/resource"
)

// DefaultChunkBlocks is the default number of blocks per chunk (32 KiB).
const DefaultChunkBlocks = 64

// Options configures Export and Restore.
type Options struct {
	// ChunkBlocks is the number of blocks per chunk. Export only.
	ChunkBlocks int
	// Compression selects the chunk codec. Export only.
	Compression Compression
	// Concurrency bounds parallel chunk transfers. Defaults to the
	// controller's background worker count, or 4 without a controller.
	Concurrency int
	// Resource throttles chunk I/O and bounds restore buffers.
	Resource *resource.Controller
	// Logger receives progress output. Defaults to a discarding logger.
	Logger *slog.Logger
}

func applyOptions(optFns []func(o *Options)) Options {
	o := Options{
		ChunkBlocks: DefaultChunkBlocks,
		Compression: CompressionLZ4,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.ChunkBlocks <= 0 {
		o.ChunkBlocks = DefaultChunkBlocks
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
		if o.Resource != nil {
			o.Concurrency = o.Resource.MaxBackgroundWorkers()
		}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
