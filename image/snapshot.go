package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/hupe1980/clusterfs/blockdev"
)

// ImageName returns the image name of version n of volume. The timestamp
// keeps names of racing writers apart.
func ImageName(volume string, n int64, t time.Time) string {
	return fmt.Sprintf("%s/v%06d-%x", volume, n, t.UnixNano())
}

// Snapshot exports src as the next version of volume and commits it to cat.
// When another writer commits the same version first, the exported image is
// deleted and ErrConcurrentModification is returned.
func Snapshot(ctx context.Context, src blockdev.Store, dst blobstore.BlobStore, cat Catalog, volume string, optFns ...func(o *Options)) (Version, *Manifest, error) {
	next := int64(1)
	latest, err := cat.Latest(ctx, volume)
	switch {
	case err == nil:
		next = latest.Version + 1
	case !errors.Is(err, ErrNoSnapshot):
		return Version{}, nil, err
	}

	name := ImageName(volume, next, time.Now())
	m, err := Export(ctx, src, dst, name, optFns...)
	if err != nil {
		if errors.Is(err, ErrImageExists) {
			return Version{}, nil, fmt.Errorf("%w: %v", ErrConcurrentModification, err)
		}
		return Version{}, nil, err
	}

	v := Version{Volume: volume, Version: next, Image: name, CreatedAt: m.CreatedAt}
	if err := cat.Commit(ctx, v); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			_ = Delete(ctx, dst, name)
		}
		return Version{}, nil, err
	}
	return v, m, nil
}

// RestoreLatest restores the newest version of volume into dst.
func RestoreLatest(ctx context.Context, cat Catalog, src blobstore.BlobStore, volume string, dst blockdev.Store, optFns ...func(o *Options)) (Version, *Manifest, error) {
	v, err := cat.Latest(ctx, volume)
	if err != nil {
		return Version{}, nil, err
	}
	m, err := Restore(ctx, src, v.Image, dst, optFns...)
	if err != nil {
		return Version{}, nil, err
	}
	return v, m, nil
}
