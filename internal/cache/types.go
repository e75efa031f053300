package cache

// CacheKey identifies a cached block.
type CacheKey struct {
	// Namespace separates block stores sharing one cache.
	Namespace string
	// Block is the block index within the namespace.
	Block uint64
}

// BlockCache is a byte-oriented cache for device blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(key CacheKey) (b []byte, ok bool)
	// Set caches a block. The cache retains b; callers must not modify it afterwards.
	Set(key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
