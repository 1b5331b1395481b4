package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is an unbounded in-memory response store. Entries are
// immutable once inserted: no TTL, no eviction, no invalidation. Growth
// is bounded only by the life of the process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates a new unbounded in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string][]byte),
	}
}

// Lookup retrieves a value from the cache
func (mc *MemoryCache) Lookup(key string) ([]byte, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	data, ok := mc.entries[key]
	return data, ok
}

// Store saves a value in the cache
func (mc *MemoryCache) Store(key string, response []byte) {
	mc.mu.Lock()
	mc.entries[key] = response
	mc.mu.Unlock()
}

// Len returns the number of cached entries
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

// Close does nothing; the map is garbage collected with the cache
func (mc *MemoryCache) Close() {}

// LRUCache is a bounded response store for long-running deployments
// where unbounded growth is not acceptable.
type LRUCache struct {
	cache *lru.Cache[string, []byte]
}

// NewLRUCache creates a cache holding at most size entries
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c}, nil
}

// Lookup retrieves a value from the cache
func (lc *LRUCache) Lookup(key string) ([]byte, bool) {
	return lc.cache.Get(key)
}

// Store saves a value in the cache, possibly evicting the oldest entry
func (lc *LRUCache) Store(key string, response []byte) {
	lc.cache.Add(key, response)
}

// Len returns the number of cached entries
func (lc *LRUCache) Len() int {
	return lc.cache.Len()
}

// Close does nothing
func (lc *LRUCache) Close() {}

// NoopCache is a cache that does nothing (used when caching is disabled)
type NoopCache struct{}

// NewNoopCache creates a new no-op cache
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Lookup always returns not found
func (nc *NoopCache) Lookup(key string) ([]byte, bool) {
	return nil, false
}

// Store does nothing
func (nc *NoopCache) Store(key string, response []byte) {}

// Len always returns zero
func (nc *NoopCache) Len() int { return 0 }

// Close does nothing
func (nc *NoopCache) Close() {}
