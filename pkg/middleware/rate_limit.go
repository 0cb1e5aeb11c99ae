package middleware

import (
	"sync"
	"time"

	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v2"
	"golang.org/x/time/rate"
)

type RateLimiterConfig struct {
	RequestsPerSecond int
	Burst             int
	// Visitors idle for longer than this are forgotten
	TTL time.Duration
}

// RateLimiter hands every client IP its own token bucket
type RateLimiter struct {
	cfg      RateLimiterConfig
	mu       sync.Mutex
	visitors *ttlcache.Cache
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.TTL == 0 {
		cfg.TTL = 3 * time.Minute
	}

	if cfg.Burst < cfg.RequestsPerSecond {
		cfg.Burst = cfg.RequestsPerSecond
	}

	visitors := ttlcache.NewCache()
	visitors.SetTTL(cfg.TTL)
	visitors.SkipTTLExtensionOnHit(false)

	return &RateLimiter{cfg: cfg, visitors: visitors}
}

func (r *RateLimiter) limiter(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, err := r.visitors.Get(ip); err == nil {
		return v.(*rate.Limiter)
	}

	l := rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.Burst)
	r.visitors.Set(ip, l)
	return l
}

func (r *RateLimiter) Allow(ip string) bool {
	return r.limiter(ip).Allow()
}

// Close stops the cache's expiry goroutine
func (r *RateLimiter) Close() error {
	return r.visitors.Close()
}

// Middleware rejects clients that ran out of tokens with 429. A limit of
// zero or less disables rate limiting.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.cfg.RequestsPerSecond <= 0 {
			c.Next()
			return
		}

		if !r.Allow(c.ClientIP()) {
			apperr.Respond(c, apperr.New(apperr.KindRateLimited, apperr.CodeTooManyRequests))
			return
		}

		c.Next()
	}
}
