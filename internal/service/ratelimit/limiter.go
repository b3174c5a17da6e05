package ratelimit

import (
	"sync"
	"time"
)

const (
	idleEviction = 10 * time.Minute
	sweepEvery   = 512
)

// Limiter is a token bucket limiter keyed by caller-supplied strings,
// typically client address plus endpoint. Entries idle for a while are
// evicted so per-client keys do not accumulate forever.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	ops     int
}

type bucket struct {
	avail    float64
	burst    float64
	perSec   float64
	refilled time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether one token is available for key and consumes it.
// burst is the bucket capacity and perSec the refill rate.
func (l *Limiter) Allow(key string, burst, perSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ops++
	if l.ops%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{avail: burst, burst: burst, perSec: perSec, refilled: now}
		l.buckets[key] = b
	}
	b.refill(now)
	if b.avail < 1 {
		return false
	}
	b.avail--
	return true
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.refilled).Seconds()
	if elapsed <= 0 {
		return
	}
	b.avail += elapsed * b.perSec
	if b.avail > b.burst {
		b.avail = b.burst
	}
	b.refilled = now
}

func (l *Limiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.refilled) > idleEviction {
			delete(l.buckets, k)
		}
	}
}
