package emt

import (
	"net/url"
	"sync"
	"time"
)

// Caches response bodies in memory
type memoryCache struct {
	mutex sync.Mutex
	cache map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	data       []byte
	expiration time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		cache: map[string]memoryCacheEntry{},
	}
}

func cacheKey(endpoint string, form url.Values) string {
	// Encode() sorts by key
	return endpoint + "?" + form.Encode()
}

func (c *memoryCache) get(key string, now time.Time) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if !entry.expiration.After(now) {
		delete(c.cache, key)
		return nil, false
	}
	return entry.data, true
}

func (c *memoryCache) put(key string, data []byte, expiration time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[key] = memoryCacheEntry{
		data:       data,
		expiration: expiration,
	}
}

func (c *memoryCache) evict(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
}
