package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes bounds request bodies at 1 MiB.
const DefaultMaxBodyBytes int64 = 1 << 20

// MaxBodySize limits the request body size. Reads past the limit fail, which
// surfaces as a validation error from the JSON binder.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
