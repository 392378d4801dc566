package webserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// Run drops stale entries every window until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, times := range rl.requests {
		valid := recent(times, now, rl.window)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Allow records a request for key and reports whether it fits the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := recent(rl.requests[key], now, rl.window)
	if len(valid) >= rl.rate {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func recent(times []time.Time, now time.Time, window time.Duration) []time.Time {
	valid := times[:0]
	for _, t := range times {
		if now.Sub(t) < window {
			valid = append(valid, t)
		}
	}
	return valid
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.String(http.StatusTooManyRequests,
				fmt.Sprintf("rate limit exceeded: %d requests per %v", limiter.rate, limiter.window))
			c.Abort()
			return
		}
		c.Next()
	}
}
