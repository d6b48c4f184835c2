package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterRegistry keeps one token bucket per client IP.
type limiterRegistry struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (r *limiterRegistry) get(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.visitors[ip]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.visitors[ip] = limiter
	}
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(limit rate.Limit, burst int) gin.HandlerFunc {
	registry := &limiterRegistry{
		visitors: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}

	return func(c *gin.Context) {
		if !registry.get(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
