package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
)

// RateLimitConfig configures a fixed-window limiter.
type RateLimitConfig struct {
	// Limit is the request budget per window.
	Limit int
	// Window is the counting window.
	Window time.Duration
	// KeyFunc derives the limiting key; defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// rateLimiter is an in-memory fixed-window counter. Per-replica, which is
// acceptable: the limit is an abuse guard, not an accounting primitive.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *RateLimitConfig
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(config *RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		config:  config,
	}
	go rl.cleanup()
	return rl
}

// allow consumes one token and reports the remainder plus time to reset.
func (rl *rateLimiter) allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.buckets[key]
	if !exists || now.Sub(b.lastReset) >= rl.config.Window {
		rl.buckets[key] = &bucket{tokens: rl.config.Limit - 1, lastReset: now}
		return true, rl.config.Limit - 1, rl.config.Window
	}

	retryAfter := rl.config.Window - now.Sub(b.lastReset)
	if b.tokens <= 0 {
		return false, 0, retryAfter
	}
	b.tokens--
	return true, b.tokens, retryAfter
}

// cleanup drops buckets idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.Window * 2)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			if now.Sub(b.lastReset) > rl.config.Window*2 {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests over the budget with 429 and Retry-After.
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	limiter := newRateLimiter(config)

	return func(c *gin.Context) {
		allowed, remaining, retryAfter := limiter.allow(config.KeyFunc(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))

		if !allowed {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			common.TooManyRequests(c, seconds)
			return
		}
		c.Next()
	}
}

// FinancialOpsRateLimit is the stricter limiter applied to money-moving
// endpoints, keyed per client per endpoint.
func FinancialOpsRateLimit(limit int) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Limit:  limit,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP() + ":" + c.FullPath()
		},
	})
}
