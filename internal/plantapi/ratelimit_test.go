package plantapi

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiterDefaults(t *testing.T) {
	rl := NewRateLimiter(0)
	status := rl.Status()

	if status.Limit != rate.Inf {
		t.Errorf("Expected unlimited rate, got %v", status.Limit)
	}
	if status.ThrottleCount != 0 {
		t.Errorf("Expected throttle count 0, got %d", status.ThrottleCount)
	}
	if rl.IsThrottled() {
		t.Error("Expected new limiter not to be throttled")
	}
}

func TestRateLimiterLimit(t *testing.T) {
	rl := NewRateLimiter(20)
	if rl.Status().Limit != rate.Limit(20) {
		t.Errorf("Expected limit 20, got %v", rl.Status().Limit)
	}
}

func TestRateLimiterThrottle(t *testing.T) {
	rl := NewRateLimiter(0)

	rl.Throttle(50 * time.Millisecond)
	if !rl.IsThrottled() {
		t.Error("Expected limiter to be throttled")
	}
	if rl.Status().ThrottleCount != 1 {
		t.Errorf("Expected throttle count 1, got %d", rl.Status().ThrottleCount)
	}

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Failed to wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected Wait to block for the throttle window, returned after %v", elapsed)
	}
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0)
	rl.Throttle(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Wait(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
