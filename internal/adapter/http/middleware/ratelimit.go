package middleware

import (
	"strconv"
	"time"

	"payflow/config"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimit enforces a fixed-window request limit per caller. Keys are the
// Basic auth key id when present (one budget per API key), otherwise the
// client IP. When the store is unreachable requests pass through; rate
// limiting degrades before availability does.
func RateLimit(store ports.RateLimitStore, cfg config.RateLimitConfig, log zerolog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || store == nil {
		return func(c *gin.Context) { c.Next() }
	}

	limit := int64(cfg.Requests)
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		count, err := store.Increment(c.Request.Context(), limiterKey(c), window)
		if err != nil {
			log.Warn().Err(err).Msg("rate limit store unavailable, allowing request")
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			c.Header("Retry-After", strconv.FormatInt(int64(window.Seconds()), 10))
			response.Error(c, apperror.RateLimited())
			return
		}

		c.Next()
	}
}

// limiterKey identifies the caller before authentication has run. The Basic
// username is taken on trust here; a wrong secret still burns budget, which
// also throttles credential guessing.
func limiterKey(c *gin.Context) string {
	if keyID, _, ok := c.Request.BasicAuth(); ok && keyID != "" {
		return "key:" + keyID
	}
	return "ip:" + c.ClientIP()
}
