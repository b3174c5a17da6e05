package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	b, ok, err := c.GetBytes("k")
	if err != nil || !ok {
		t.Fatalf("GetBytes: ok=%v err=%v", ok, err)
	}
	if string(b) != "v" {
		t.Fatalf("got %q, want v", b)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("SetBytes: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatal("expired entry still visible")
	}
}

func TestTTLCacheSweepBoundsMap(t *testing.T) {
	c := NewTTLCache()
	for i := 0; i < sweepEvery; i++ {
		_ = c.SetBytes(fmt.Sprintf("k%d", i), []byte("v"), time.Nanosecond)
	}
	time.Sleep(time.Millisecond)
	for i := 0; i < sweepEvery; i++ {
		_ = c.SetBytes("fresh", []byte("v"), time.Minute)
	}

	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	if n >= sweepEvery {
		t.Fatalf("expired entries never swept, map holds %d items", n)
	}
}
