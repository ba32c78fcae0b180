package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cra-notify/pkg/response"

	"github.com/gin-gonic/gin"
)

// RateLimiter is backed by Redis in production.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware accepts a nil limiter, in which case every request passes.
func NewRateLimitMiddleware(limiter RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// RateLimit limits per authenticated user and endpoint. Must run after RequireAuth.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", UserID(c), c.FullPath())
		rm.check(c, key, requests, window)
	}
}

// RateLimitIP limits per client IP and endpoint, for routes hit before authentication.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath())
		rm.check(c, key, requests, window)
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, requests int, window time.Duration) {
	if rm.limiter == nil {
		c.Next()
		return
	}

	allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
	if err != nil {
		rm.logger.Error("Rate limit check failed", "key", key, "error", err)
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "rate limit check failed")
		return
	}

	if !allowed {
		response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited,
			fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window))
		return
	}

	c.Next()
}
