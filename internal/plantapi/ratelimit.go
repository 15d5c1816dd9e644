package plantapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests shared by every goroutine using a Client and
// holds all of them back after the API answers 429 with Retry-After
type RateLimiter struct {
	limiter *rate.Limiter

	mu             sync.RWMutex
	throttledUntil time.Time
	throttleCount  int
}

// RateLimitStatus represents the current rate limit status
type RateLimitStatus struct {
	Limit          rate.Limit
	ThrottledUntil time.Time
	ThrottleCount  int
}

// NewRateLimiter creates a limiter allowing perSecond requests per second.
// A non-positive value means unlimited.
func NewRateLimiter(perSecond float64) *RateLimiter {
	limit := rate.Inf
	burst := 0
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond))
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.RLock()
	until := rl.throttledUntil
	rl.mu.RUnlock()

	if wait := time.Until(until); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return rl.limiter.Wait(ctx)
}

// Throttle pauses all callers for d
func (rl *RateLimiter) Throttle(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(rl.throttledUntil) {
		rl.throttledUntil = until
	}
	rl.throttleCount++
}

// Status returns the current rate limit status
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return RateLimitStatus{
		Limit:          rl.limiter.Limit(),
		ThrottledUntil: rl.throttledUntil,
		ThrottleCount:  rl.throttleCount,
	}
}

// IsThrottled returns true while a Retry-After pause is in effect
func (rl *RateLimiter) IsThrottled() bool {
	return time.Now().Before(rl.Status().ThrottledUntil)
}
