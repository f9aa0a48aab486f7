package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"roomcheck-backend/internal/model"
)

// ClientRateLimiter keeps a token bucket per client. Buckets idle for longer
// than the idle timeout are dropped.
type ClientRateLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewClientRateLimiter creates a ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int, idle time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: cache.New(idle, 2*idle),
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the bucket for key, creating it on first use.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Get(key); ok {
		l.limiters.SetDefault(key, v)
		return v.(*rate.Limiter)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.limiters.SetDefault(key, limiter)
	return limiter
}

// RateLimiter limits each caller to r requests per second with burst b.
// Mounted after Authenticate it keys on the principal, so callers behind one
// address get separate buckets. Requests without a principal key on the
// client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b, 10*time.Minute)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, ok := PrincipalFrom(c); ok {
			key = "user:" + p.ID
		}
		if !limiter.GetLimiter(key).Allow() {
			abort(c, http.StatusTooManyRequests, model.ErrRateLimited)
			return
		}
		c.Next()
	}
}
