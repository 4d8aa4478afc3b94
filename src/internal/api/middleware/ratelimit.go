package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	apperrors "github.com/studyhub/studyhub/src/internal/errors"
)

// ClientLimiter keeps one token bucket per client IP
type ClientLimiter struct {
	limiters  map[string]*clientEntry
	perMinute int
	burst     int
	idleTTL   time.Duration
	mu        sync.Mutex
	now       func() time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter creates a limiter allowing perMinute requests per client
func NewClientLimiter(perMinute int) *ClientLimiter {
	// Burst capacity is 10% of the per-minute limit
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		limiters:  make(map[string]*clientEntry),
		perMinute: perMinute,
		burst:     burst,
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

// Allow reports whether a request from key may proceed
func (cl *ClientLimiter) Allow(key string) bool {
	if cl.perMinute <= 0 {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	entry, exists := cl.limiters[key]
	if !exists {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(cl.perMinute)/60.0), cl.burst),
		}
		cl.limiters[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// Cleanup drops clients idle for longer than the idle TTL
func (cl *ClientLimiter) Cleanup() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := cl.now().Add(-cl.idleTTL)
	for key, entry := range cl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(cl.limiters, key)
		}
	}
}

// Len returns the number of tracked clients
func (cl *ClientLimiter) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.limiters)
}

// RateLimit returns a per-IP rate limiting middleware using ratelimit.per_minute
func RateLimit(cfg *viper.Viper) echo.MiddlewareFunc {
	return RateLimitWithLimiter(NewClientLimiter(cfg.GetInt("ratelimit.per_minute")))
}

// RateLimitWithLimiter returns a rate limiting middleware backed by cl
func RateLimitWithLimiter(cl *ClientLimiter) echo.MiddlewareFunc {
	var requests int
	var mu sync.Mutex

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			mu.Lock()
			requests++
			if requests%1000 == 0 {
				go cl.Cleanup()
			}
			mu.Unlock()

			if !cl.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(60/max(cl.perMinute, 1)+1))
				return apperrors.RateLimitError(cl.perMinute, "1m")
			}
			return next(c)
		}
	}
}
