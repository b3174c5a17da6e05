package cache

import (
	"sync"
	"time"
)

// sweepEvery controls how often SetBytes scans for expired entries.
const sweepEvery = 256

type item struct {
	value   []byte
	expires time.Time
}

// TTLCache is the in-process fallback used when Redis is not configured.
// History keys embed caller-supplied query strings, so expired entries
// are swept periodically to keep the map bounded.
type TTLCache struct {
	mu     sync.RWMutex
	items  map[string]item
	writes int
}

func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]item)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && time.Now().After(it.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return it.value, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expires: expires}
	c.writes++
	if c.writes%sweepEvery == 0 {
		c.sweepLocked(time.Now())
	}
	c.mu.Unlock()
	return nil
}

func (c *TTLCache) sweepLocked(now time.Time) {
	for k, it := range c.items {
		if !it.expires.IsZero() && now.After(it.expires) {
			delete(c.items, k)
		}
	}
}
