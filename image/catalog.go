package image

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Version is one committed snapshot of a volume.
type Version struct {
	Volume    string
	Version   int64
	Image     string
	CreatedAt time.Time
}

// Catalog records snapshot versions per volume.
type Catalog interface {
	// Latest returns the newest version of volume, or ErrNoSnapshot.
	Latest(ctx context.Context, volume string) (Version, error)
	// Commit records v. It fails with ErrConcurrentModification when
	// v.Version already exists for v.Volume.
	Commit(ctx context.Context, v Version) error
}

// MemoryCatalog is an in-process Catalog.
type MemoryCatalog struct {
	mu       sync.Mutex
	versions map[string][]Version
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{versions: make(map[string][]Version)}
}

// Latest implements Catalog.
func (c *MemoryCatalog) Latest(ctx context.Context, volume string) (Version, error) {
	if err := ctx.Err(); err != nil {
		return Version{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vs := c.versions[volume]
	if len(vs) == 0 {
		return Version{}, fmt.Errorf("%w: %s", ErrNoSnapshot, volume)
	}
	return vs[len(vs)-1], nil
}

// Commit implements Catalog.
func (c *MemoryCatalog) Commit(ctx context.Context, v Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vs := c.versions[v.Volume]
	i := sort.Search(len(vs), func(i int) bool { return vs[i].Version >= v.Version })
	if i < len(vs) && vs[i].Version == v.Version {
		return fmt.Errorf("%w: %s version %d", ErrConcurrentModification, v.Volume, v.Version)
	}
	vs = append(vs, Version{})
	copy(vs[i+1:], vs[i:])
	vs[i] = v
	c.versions[v.Volume] = vs
	return nil
}

// History returns every version of volume, oldest first.
func (c *MemoryCatalog) History(volume string) []Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Version(nil), c.versions[volume]...)
}
