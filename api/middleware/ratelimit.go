package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/prodrank/config"
	"github.com/use-agent/prodrank/models"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate. Rejected requests carry a
// Retry-After header.
//
// Entries unused for an hour are evicted every five minutes until ctx
// ends.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*limiterEntry)

	getLimiter := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		entry, ok := limiters[identity]
		if !ok {
			entry = &limiterEntry{
				limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
			}
			limiters[identity] = entry
		}
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			cutoff := time.Now().Add(-1 * time.Hour)
			mu.Lock()
			for id, entry := range limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(limiters, id)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.GetString(IdentityKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		r := getLimiter(identity).Reserve()
		if delay := r.Delay(); !r.OK() || delay > 0 {
			r.Cancel()
			if r.OK() {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			}
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
