package cache

// Cache defines the interface for response caching
// This interface allows for different implementations behind one handler path
type Cache interface {
	// Lookup retrieves a cached response by key
	// Returns the cached bytes and true if found, nil and false otherwise
	Lookup(key string) ([]byte, bool)

	// Store saves a response under the given key, overwriting any
	// previous value. Concurrent stores of the same key are allowed;
	// the last write wins.
	Store(key string, response []byte)

	// Len returns the current number of entries
	Len() int

	// Close releases any resources held by the cache
	Close()
}
