package fetcher

import (
	"sync"
	"time"
)

// Entry is one cached fetch result.
type Entry struct {
	Bytes     []byte
	FetchedAt time.Time
}

// Cache is a short-TTL, process-local cache keyed by an opaque string
// (typically a (mikanBangumiID, subgroupID) pair). Concurrent identical
// fetches are coalesced via a per-key mutex rather than a
// golang.org/x/sync/singleflight (not in the retrieval pack) — each
// caller takes the key's lock, re-checks the cache, and only the first
// one through actually hits the network.
type Cache struct {
	ttl   time.Duration
	mu    sync.Mutex
	data  map[string]Entry
	locks map[string]*sync.Mutex
}

// NewCache creates a Cache with the given freshness window.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		data:  make(map[string]Entry),
		locks: make(map[string]*sync.Mutex),
	}
}

// CacheKey builds the cache key for a (mikanBangumiID, subgroupID) pair.
func CacheKey(mikanBangumiID, subgroupID string) string {
	return mikanBangumiID + "\x00" + subgroupID
}

// Get returns the cached entry for key if it's still within the TTL
// window.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok || time.Since(entry.FetchedAt) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

// Set stores a fresh entry for key.
func (c *Cache) Set(key string, body []byte, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = Entry{Bytes: body, FetchedAt: fetchedAt}
}

// Lock acquires the per-key mutex that coalesces concurrent fetches for
// key, returning a function the caller must call to release it.
func (c *Cache) Lock(key string) func() {
	c.mu.Lock()
	keyLock, ok := c.locks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		c.locks[key] = keyLock
	}
	c.mu.Unlock()

	keyLock.Lock()
	return keyLock.Unlock
}
