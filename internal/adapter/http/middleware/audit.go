package middleware

import (
	"payflow/pkg/requestctx"

	"github.com/gin-gonic/gin"
)

// ClientContext copies the caller's IP into the request context. Audit
// entries are written deep inside the service layer, where gin is not
// visible; they read the IP back out of the context.
func ClientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := requestctx.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
