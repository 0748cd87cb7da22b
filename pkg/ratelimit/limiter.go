package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

// Clock returns the current time; tests swap it out
type Clock func() time.Time

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillPeriod time.Duration // Period after which bucket is refilled
	lastRefill   time.Time     // Last time the bucket was refilled
	now          Clock
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
		now:          time.Now,
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		wait := tb.refillPeriod - tb.now().Sub(tb.lastRefill)
		tb.mu.Unlock()

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// refill adds tokens based on elapsed time
func (tb *TokenBucket) refill() {
	now := tb.now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// SlidingWindow implements a sliding window rate limiter
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         Clock
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return newSlidingWindow(maxRequests, windowSize, time.Now)
}

func newSlidingWindow(maxRequests int, windowSize time.Duration, now Clock) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// RetryAfter reports how long until the next request would be allowed
func (sw *SlidingWindow) RetryAfter() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)
	if len(sw.requests) < sw.maxRequests || len(sw.requests) == 0 {
		return 0
	}
	return sw.windowSize - now.Sub(sw.requests[0])
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		if err := sleep(ctx, sw.RetryAfter()); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// idle reports whether the window holds no live requests
func (sw *SlidingWindow) idle() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.cleanOldRequests(sw.now())
	return len(sw.requests) == 0
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// KeyedLimiter keeps one sliding window per key, typically a client IP
type KeyedLimiter struct {
	maxRequests int
	windowSize  time.Duration
	now         Clock

	mu      sync.Mutex
	windows map[string]*SlidingWindow
}

// NewKeyedLimiter allows maxRequests per key in every window
func NewKeyedLimiter(maxRequests int, windowSize time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		maxRequests: maxRequests,
		windowSize:  windowSize,
		now:         time.Now,
		windows:     make(map[string]*SlidingWindow),
	}
}

// PerMinute builds a keyed limiter from a requests-per-minute setting
func PerMinute(requests int) *KeyedLimiter {
	return NewKeyedLimiter(requests, time.Minute)
}

func (kl *KeyedLimiter) window(key string) *SlidingWindow {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	w, ok := kl.windows[key]
	if !ok {
		w = newSlidingWindow(kl.maxRequests, kl.windowSize, kl.now)
		kl.windows[key] = w
	}
	return w
}

// Allow records a request for key. When it is refused the returned
// duration says how long the caller should back off.
func (kl *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	if kl.maxRequests <= 0 {
		return true, 0
	}
	w := kl.window(key)
	if w.Allow() {
		return true, 0
	}
	return false, w.RetryAfter()
}

// Limit returns the configured requests per window
func (kl *KeyedLimiter) Limit() int {
	return kl.maxRequests
}

// Prune drops windows with no requests left in them
func (kl *KeyedLimiter) Prune() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	removed := 0
	for key, w := range kl.windows {
		if w.idle() {
			delete(kl.windows, key)
			removed++
		}
	}
	return removed
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = 10 * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
