package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"clausewise/internal/config"
)

const idleLimiterTTL = 30 * time.Minute

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requestsPerMinute sustained requests per caller with
// the given burst.
func NewRateLimiter(requestsPerMinute float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(requestsPerMinute / 60),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now, and if not, how long to wait.
func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictIdle(now)

	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = e
	}
	e.lastSeen = now

	res := e.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (r *RateLimiter) evictIdle(now time.Time) {
	for k, e := range r.limiters {
		if now.Sub(e.lastSeen) > idleLimiterTTL {
			delete(r.limiters, k)
		}
	}
}

// Middleware throttles per authenticated user, falling back to the client IP.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, err := GetUserID(c); err == nil {
			key = id.String()
		}

		ok, wait := r.Allow(key)
		if !ok {
			if wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"code": "RATE_LIMITED", "message": "too many analysis requests; please retry later"},
			})
			return
		}
		c.Next()
	}
}

// RateLimit builds a per-caller limiter from cfg. A non-positive rate
// disables throttling.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst).Middleware()
}
