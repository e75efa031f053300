package blockdev

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/clusterfs/internal/cache"
	"github.com/hupe1980/clusterfs/internal/resource"
)

var cacheNamespaces atomic.Uint64

// CachingStore is a write-through LRU block cache in front of another Store.
type CachingStore struct {
	Store
	cache *cache.LRUBlockCache
	ns    string
}

// NewCachingStore wraps s with a cache of capacityBytes. If rc is non-nil,
// cached bytes are charged against its memory budget.
func NewCachingStore(s Store, capacityBytes int64, rc *resource.Controller) *CachingStore {
	return &CachingStore{
		Store: s,
		cache: cache.NewLRUBlockCache(capacityBytes, rc),
		ns:    fmt.Sprintf("store-%d", cacheNamespaces.Add(1)),
	}
}

func (c *CachingStore) key(id int) cache.CacheKey {
	return cache.CacheKey{Namespace: c.ns, Block: uint64(id)}
}

// ReadBlock implements Store.
func (c *CachingStore) ReadBlock(id int) ([]byte, error) {
	if !c.Store.IsOpen() {
		return nil, ErrNotOpen
	}
	if b, ok := c.cache.Get(c.key(id)); ok {
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}

	b, err := c.Store.ReadBlock(id)
	if err != nil {
		return nil, err
	}
	cached := make([]byte, len(b))
	copy(cached, b)
	c.cache.Set(c.key(id), cached)
	return b, nil
}

// WriteBlock implements Store. Full-block writes refresh the cache; partial
// writes drop the cached copy because the device merges them with old bytes.
func (c *CachingStore) WriteBlock(id int, p []byte) error {
	if err := c.Store.WriteBlock(id, p); err != nil {
		return err
	}
	if len(p) == BlockSize {
		cached := make([]byte, BlockSize)
		copy(cached, p)
		c.cache.Set(c.key(id), cached)
		return nil
	}
	c.invalidate(func(k cache.CacheKey) bool { return k.Block == uint64(id) })
	return nil
}

// Close implements Store and empties the cache, since the device may change
// while the store is closed.
func (c *CachingStore) Close() error {
	c.invalidate(func(cache.CacheKey) bool { return true })
	return c.Store.Close()
}

// SetSize forwards to the wrapped store if it implements Resizer.
func (c *CachingStore) SetSize(blocks int) error {
	r, ok := c.Store.(Resizer)
	if !ok {
		return fmt.Errorf("blockdev: %T cannot be resized", c.Store)
	}
	c.invalidate(func(cache.CacheKey) bool { return true })
	return r.SetSize(blocks)
}

// Stats returns cache hits and misses.
func (c *CachingStore) Stats() (hits, misses int64) {
	return c.cache.Stats()
}

// Unwrap returns the wrapped store.
func (c *CachingStore) Unwrap() Store {
	return c.Store
}

func (c *CachingStore) invalidate(pred func(cache.CacheKey) bool) {
	c.cache.Invalidate(func(k cache.CacheKey) bool {
		return k.Namespace == c.ns && pred(k)
	})
}
