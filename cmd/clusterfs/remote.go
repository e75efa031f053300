package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/clusterfs/blobstore"
	miniostore "github.com/hupe1980/clusterfs/blobstore/minio"
	s3store "github.com/hupe1980/clusterfs/blobstore/s3"
	"github.com/hupe1980/clusterfs/blockdev"
	"github.com/hupe1980/clusterfs/image"
	"github.com/hupe1980/clusterfs/image/ddbcatalog"
	"github.com/hupe1980/clusterfs/internal/resource"
)

func init() {
	register("export", "<drive> <target> <name>", "write the drive as an image", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		opts := imageFlags(fs, true)
		return func(ctx context.Context, e *env, args []string) error {
			store, err := openDrive(e, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			dst, err := openTarget(ctx, args[1], true)
			if err != nil {
				return err
			}
			m, err := image.Export(ctx, store, dst, args[2], opts(e)...)
			if err != nil {
				return err
			}
			printManifest(e, m)
			return nil
		}
	})

	register("import", "<target> <name> <drive>", "restore an image into a drive file", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		opts := imageFlags(fs, false)
		return func(ctx context.Context, e *env, args []string) error {
			src, err := openTarget(ctx, args[0], false)
			if err != nil {
				return err
			}
			m, err := image.ReadManifest(ctx, src, args[1])
			if err != nil {
				return err
			}
			store, err := createDrive(e, args[2], m.Blocks)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if _, err := image.Restore(ctx, src, args[1], store, opts(e)...); err != nil {
				return err
			}
			printManifest(e, m)
			return nil
		}
	})

	register("snapshot", "<drive> <target> <volume>", "write the next catalog version of the drive", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		table := fs.String("table", os.Getenv("CLUSTERFS_TABLE"), "DynamoDB catalog table")
		opts := imageFlags(fs, true)
		return func(ctx context.Context, e *env, args []string) error {
			cat, err := openCatalog(ctx, *table)
			if err != nil {
				return err
			}
			store, err := openDrive(e, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			dst, err := openTarget(ctx, args[1], true)
			if err != nil {
				return err
			}
			v, m, err := image.Snapshot(ctx, store, dst, cat, args[2], opts(e)...)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "%s version %d\n", v.Volume, v.Version)
			printManifest(e, m)
			return nil
		}
	})

	register("restore", "<target> <volume> <drive>", "restore the latest catalog version", func(fs *flag.FlagSet) func(context.Context, *env, []string) error {
		table := fs.String("table", os.Getenv("CLUSTERFS_TABLE"), "DynamoDB catalog table")
		opts := imageFlags(fs, false)
		return func(ctx context.Context, e *env, args []string) error {
			cat, err := openCatalog(ctx, *table)
			if err != nil {
				return err
			}
			src, err := openTarget(ctx, args[0], false)
			if err != nil {
				return err
			}
			v, err := cat.Latest(ctx, args[1])
			if err != nil {
				return err
			}
			m, err := image.ReadManifest(ctx, src, v.Image)
			if err != nil {
				return err
			}
			store, err := createDrive(e, args[2], m.Blocks)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if _, err := image.Restore(ctx, src, v.Image, store, opts(e)...); err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "%s version %d\n", v.Volume, v.Version)
			printManifest(e, m)
			return nil
		}
	})
}

// imageFlags defines the transfer flags and returns a builder for the image
// options.
func imageFlags(fs *flag.FlagSet, export bool) func(e *env) []func(o *image.Options) {
	workers := fs.Int("workers", 4, "parallel chunk transfers")
	ioLimit := fs.Int64("io-limit", 0, "chunk I/O limit in bytes per second (0 is unlimited)")
	compression := image.CompressionLZ4
	chunkBlocks := image.DefaultChunkBlocks
	if export {
		fs.TextVar(&compression, "compression", image.CompressionLZ4, "chunk compression (none, lz4, zstd)")
		fs.IntVar(&chunkBlocks, "chunk-blocks", image.DefaultChunkBlocks, "blocks per chunk")
	}

	return func(e *env) []func(o *image.Options) {
		rc := resource.NewController(resource.Config{
			MaxBackgroundWorkers: int64(*workers),
			IOLimitBytesPerSec:   *ioLimit,
		})
		return []func(o *image.Options){func(o *image.Options) {
			o.Compression = compression
			o.ChunkBlocks = chunkBlocks
			o.Resource = rc
			o.Logger = e.logger.Logger
		}}
	}
}

func printManifest(e *env, m *image.Manifest) {
	fmt.Fprintf(e.stdout, "%s: %d blocks, %d chunks, %s, %d of %d bytes stored, crc32c %08x\n",
		m.Name, m.Blocks, len(m.Chunks), m.Compression, m.StoredBytes(), m.RawBytes(), m.CRC32C)
}

// createDrive opens path for a restore, creating it with blocks when missing.
func createDrive(e *env, path string, blocks int) (*blockdev.FileStore, error) {
	store, err := blockdev.Create(path, blocks, driveOptions(e, false)...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	if !store.IsOpen() {
		return nil, fmt.Errorf("%s: %w", path, blockdev.ErrNotOpen)
	}
	return store, nil
}

func openCatalog(ctx context.Context, table string) (image.Catalog, error) {
	if table == "" {
		return nil, errors.New("no catalog table: set -table or CLUSTERFS_TABLE")
	}
	return ddbcatalog.New(ctx, table)
}

// openTarget resolves a target to a blob store:
//
//	s3://bucket/prefix            AWS S3, S3_ENDPOINT selects a compatible endpoint
//	minio://host:port/bucket/pfx  MinIO, MINIO_ACCESS_KEY/MINIO_SECRET_KEY/MINIO_SECURE
//	anything else                 local directory
func openTarget(ctx context.Context, target string, create bool) (blobstore.BlobStore, error) {
	switch {
	case strings.HasPrefix(target, "s3://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(target, "s3://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid target %q", target)
		}
		endpoint := os.Getenv("S3_ENDPOINT")
		return s3store.New(ctx, bucket, func(o *s3store.Options) {
			o.Prefix = prefix
			o.Endpoint = endpoint
			o.UsePathStyle = endpoint != ""
		})

	case strings.HasPrefix(target, "minio://"):
		parts := strings.SplitN(strings.TrimPrefix(target, "minio://"), "/", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid target %q", target)
		}
		prefix := ""
		if len(parts) == 3 {
			prefix = parts[2]
		}
		store, err := miniostore.New(parts[0], parts[1], func(o *miniostore.Options) {
			o.Prefix = prefix
			o.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
			o.SecretKey = os.Getenv("MINIO_SECRET_KEY")
			o.Secure = os.Getenv("MINIO_SECURE") == "true"
		})
		if err != nil {
			return nil, err
		}
		if create {
			if err := store.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil

	default:
		return blobstore.NewLocalStore(strings.TrimPrefix(target, "file://")), nil
	}
}
