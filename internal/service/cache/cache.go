package cache

import "time"

// BytesCache stores serialized HTTP responses with a TTL. The alerts API
// uses it to absorb repeated history queries between scans.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

var (
	_ BytesCache = (*TTLCache)(nil)
	_ BytesCache = (*RedisCache)(nil)
)
