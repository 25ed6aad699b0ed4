package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/requestctx"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID carries the correlation id, echoed on every response.
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID = "request_id"
	CtxMerchant  = "auth_merchant"
	CtxClaims    = "auth_claims"
)

// RequestID assigns each request a correlation id. An incoming X-Request-ID
// is honored so callers can trace requests across systems; otherwise a fresh
// UUID is generated. The id is echoed in the response and placed in the
// request context for logs and audit entries.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)

		ctx := requestctx.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Timeout bounds each request with a context deadline. Repositories and
// outbound calls observe it through the request context.
func Timeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs every HTTP request. Level follows the status class:
// info for success, warn for client errors, error for server errors.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery converts panics into the standard error envelope. The panic value
// is logged server-side and never leaks to the client.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(CtxRequestID)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

// BasicAuth authenticates merchant API requests with a key_id/key_secret
// pair sent as HTTP Basic credentials. The resolved merchant is placed in
// the gin context for handlers.
func BasicAuth(merchantSvc ports.MerchantService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		keyID, keySecret, ok := c.Request.BasicAuth()
		if !ok || keyID == "" {
			c.Header("WWW-Authenticate", `Basic realm="payflow"`)
			response.Error(c, apperror.ErrInvalidCredentials())
			return
		}

		merchant, err := merchantSvc.ResolveKey(c.Request.Context(), keyID, keySecret)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(CtxMerchant, merchant)
		c.Next()
	}
}

// JWTAuth validates the bearer token on dashboard routes and places the
// verified claims in the gin context.
func JWTAuth(tokenSvc ports.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(CtxClaims, claims)
		c.Next()
	}
}

// RequireRole gates a route group to the given roles. It must run after
// JWTAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, apperror.ErrInvalidToken())
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		response.Error(c, apperror.Forbidden("insufficient role"))
	}
}

// Merchant returns the merchant resolved by BasicAuth, or nil.
func Merchant(c *gin.Context) *domain.Merchant {
	if v, ok := c.Get(CtxMerchant); ok {
		if m, ok := v.(*domain.Merchant); ok {
			return m
		}
	}
	return nil
}

// Claims returns the token claims set by JWTAuth, or nil.
func Claims(c *gin.Context) *ports.TokenClaims {
	if v, ok := c.Get(CtxClaims); ok {
		if claims, ok := v.(*ports.TokenClaims); ok {
			return claims
		}
	}
	return nil
}
