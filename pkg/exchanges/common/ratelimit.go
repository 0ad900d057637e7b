package common

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outgoing requests and tracks the quota the venue
// reports back in response headers.
type RateLimiter struct {
	limiter   *rate.Limiter
	remaining int
	limit     int
	updated   time.Time
	mu        sync.RWMutex
}

// NewRateLimiter allows perSecond requests per second with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.ShouldDelay() {
		// Back off harder when the venue says the window is almost spent.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return rl.limiter.Wait(ctx)
}

// UpdateFromHeaders records X-Bapi-Limit-Status (remaining) and X-Bapi-Limit.
func (rl *RateLimiter) UpdateFromHeaders(status, limit string) {
	if status == "" || limit == "" {
		return
	}
	remaining, err := strconv.Atoi(status)
	if err != nil {
		return
	}
	total, err := strconv.Atoi(limit)
	if err != nil || total <= 0 {
		return
	}

	rl.mu.Lock()
	rl.remaining = remaining
	rl.limit = total
	rl.updated = time.Now()
	rl.mu.Unlock()

	used := float64(total-remaining) / float64(total) * 100
	if used >= 95 {
		log.Printf("rate limit critical: %d/%d remaining (%.1f%% used)", remaining, total, used)
	} else if used >= 80 {
		log.Printf("rate limit warning: %d/%d remaining (%.1f%% used)", remaining, total, used)
	}
}

// GetUsage returns the last reported quota. Reports older than a second are
// treated as a fresh window.
func (rl *RateLimiter) GetUsage() (remaining int, limit int, percentage float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if rl.limit == 0 || time.Since(rl.updated) >= time.Second {
		return rl.limit, rl.limit, 0
	}
	return rl.remaining, rl.limit, float64(rl.limit-rl.remaining) / float64(rl.limit) * 100
}

// ShouldDelay returns true if we should delay the next request.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.GetUsage()
	return pct >= 90
}
