package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// ipLimiters keeps one token bucket per client IP, dropping idle buckets.
type ipLimiters struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*rateLimiter
}

func newIPLimiters(perMinute int) *ipLimiters {
	perMinute = max(perMinute, 1)
	return &ipLimiters{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
		idle:    5 * time.Minute,
		buckets: map[string]*rateLimiter{},
	}
}

func (l *ipLimiters) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, b := range l.buckets {
		if now.After(b.expires) {
			delete(l.buckets, k)
		}
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &rateLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.expires = now.Add(l.idle)
	return b.limiter.Allow()
}

// RateLimitMiddleware applies a per-IP token bucket sized by app.rate_limit_per_minute.
func RateLimitMiddleware() gin.HandlerFunc {
	return RateLimitPerMinute(config.Get().App.RateLimitPerMinute)
}

// RateLimitPerMinute applies a per-IP token bucket allowing perMinute requests with a burst of half that.
func RateLimitPerMinute(perMinute int) gin.HandlerFunc {
	limiters := newIPLimiters(perMinute)
	return func(ctx *gin.Context) {
		if !limiters.allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// WriteRateLimit limits only submissions (POST, PUT, PATCH, DELETE); reads pass through.
func WriteRateLimit(perMinute int) gin.HandlerFunc {
	limit := RateLimitPerMinute(perMinute)
	return func(ctx *gin.Context) {
		switch ctx.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			ctx.Next()
			return
		}
		limit(ctx)
	}
}
