// Package ratelimit limits how often a key may act within a time window.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter reports whether the next request for key may proceed.
// Allowed requests count against the key.
type RateLimiter interface {
	Allow(key string) bool
}

// TokenBucketConfig holds token bucket configuration
type TokenBucketConfig struct {
	Capacity       int
	RefillInterval time.Duration
	RefillTokens   int
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucketRateLimiter gives every key a bucket of Capacity tokens,
// topped up by RefillTokens each RefillInterval.
type TokenBucketRateLimiter struct {
	config  TokenBucketConfig
	now     func() time.Time
	buckets map[string]*tokenBucket
	mu      sync.Mutex
}

// TokenBucketOption configures token bucket rate limiter
type TokenBucketOption func(*TokenBucketRateLimiter)

// WithRefillTokens sets the number of tokens to refill per interval
func WithRefillTokens(tokens int) TokenBucketOption {
	return func(r *TokenBucketRateLimiter) {
		r.config.RefillTokens = tokens
	}
}

// WithBucketClock sets the time source of a token bucket limiter.
func WithBucketClock(now func() time.Time) TokenBucketOption {
	return func(r *TokenBucketRateLimiter) {
		r.now = now
	}
}

// NewTokenBucketRateLimiter creates a new token bucket rate limiter
func NewTokenBucketRateLimiter(capacity int, refillInterval time.Duration, opts ...TokenBucketOption) *TokenBucketRateLimiter {
	r := &TokenBucketRateLimiter{
		config: TokenBucketConfig{
			Capacity:       capacity,
			RefillInterval: refillInterval,
			RefillTokens:   1,
		},
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// PerMinute returns a limiter allowing n requests per key and minute, with
// a burst of n. n must be positive.
func PerMinute(n int, opts ...TokenBucketOption) *TokenBucketRateLimiter {
	return NewTokenBucketRateLimiter(n, time.Minute/time.Duration(n), opts...)
}

// GetConfig returns the rate limiter configuration
func (r *TokenBucketRateLimiter) GetConfig() TokenBucketConfig {
	return r.config
}

// Allow takes a token from the bucket of key.
func (r *TokenBucketRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket, exists := r.buckets[key]
	if !exists {
		bucket = &tokenBucket{tokens: r.config.Capacity, lastRefill: now}
		r.buckets[key] = bucket
	}

	if elapsed := now.Sub(bucket.lastRefill); elapsed >= r.config.RefillInterval {
		intervals := elapsed / r.config.RefillInterval
		bucket.tokens = min(r.config.Capacity, bucket.tokens+int(intervals)*r.config.RefillTokens)
		bucket.lastRefill = bucket.lastRefill.Add(intervals * r.config.RefillInterval)
	}

	if bucket.tokens > 0 {
		bucket.tokens--

		return true
	}

	return false
}

// Remaining returns the tokens left in the bucket of key without taking one.
func (r *TokenBucketRateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.buckets[key]
	if !exists {
		return r.config.Capacity
	}

	return bucket.tokens
}

// SlidingWindowRateLimiter allows at most limit hits per key within any
// rolling window.
type SlidingWindowRateLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	entries map[string][]time.Time
	mu      sync.Mutex
}

// NewSlidingWindowRateLimiter creates a new sliding window rate limiter.
// A nil clock uses time.Now.
func NewSlidingWindowRateLimiter(limit int, window time.Duration, now func() time.Time) *SlidingWindowRateLimiter {
	if now == nil {
		now = time.Now
	}

	return &SlidingWindowRateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		entries: make(map[string][]time.Time),
	}
}

// Allow records a hit for key unless the window is already full.
func (r *SlidingWindowRateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	hits := r.prune(key, now)
	if len(hits) >= r.limit {
		return false
	}
	r.entries[key] = append(hits, now)

	return true
}

// Reset forgets every hit of key.
func (r *SlidingWindowRateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
}

// prune drops the hits of key that fell out of the window. Callers hold mu.
func (r *SlidingWindowRateLimiter) prune(key string, now time.Time) []time.Time {
	hits := r.entries[key]
	cutoff := now.Add(-r.window)

	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == len(hits) {
		delete(r.entries, key)
		return nil
	}
	hits = hits[i:]
	r.entries[key] = hits

	return hits
}

// ClientIP keys requests by the first X-Forwarded-For address, then
// X-Real-IP, then the host of RemoteAddr.
func ClientIP(r *http.Request) string {
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// retryAfter is the Retry-After value in seconds for a limiter, when known.
func retryAfter(limiter RateLimiter) string {
	switch l := limiter.(type) {
	case *TokenBucketRateLimiter:
		return strconv.Itoa(max(1, int(l.config.RefillInterval/time.Second)))
	case *SlidingWindowRateLimiter:
		return strconv.Itoa(max(1, int(l.window/time.Second)))
	default:
		return ""
	}
}
