package auth

import (
	"sync"
	"time"
)

// RateLimitConfig bounds how many frames a key may send
type RateLimitConfig struct {
	FramesPerMinute int `json:"frames_per_minute" toml:"frames_per_minute"`
	BurstSize       int `json:"burst_size" toml:"burst_size"`
}

// RateLimiter tracks frame rates per key with a token bucket each
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	config  RateLimitConfig
	now     func() time.Time
}

// tokenBucket implements token bucket algorithm
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter. Zero fields default to 600 frames per
// minute with a burst of 50.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.FramesPerMinute <= 0 {
		config.FramesPerMinute = 600
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 50
	}
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  config,
		now:     time.Now,
	}
}

// Allow consumes one token for key and reports whether it was available
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, exists := l.buckets[key]
	if !exists {
		bucket = &tokenBucket{
			tokens:     float64(l.config.BurstSize),
			lastRefill: now,
		}
		l.buckets[key] = bucket
	}

	// Refill tokens based on time elapsed
	elapsed := now.Sub(bucket.lastRefill)
	refill := elapsed.Seconds() * (float64(l.config.FramesPerMinute) / 60.0)
	bucket.tokens = min(bucket.tokens+refill, float64(l.config.BurstSize))
	bucket.lastRefill = now

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return true
	}
	return false
}

// Remaining returns the number of tokens left for key
func (l *RateLimiter) Remaining(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, exists := l.buckets[key]
	if !exists {
		return float64(l.config.BurstSize)
	}
	return bucket.tokens
}

// Reset forgets key, typically when its connection closes
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}
