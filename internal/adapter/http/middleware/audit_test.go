package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"payflow/pkg/requestctx"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestClientContext_PropagatesIP(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(ClientContext())
	r.POST("/test", func(c *gin.Context) {
		seen = requestctx.ClientIP(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.7", seen)
}

func TestClientContext_EmptyWithoutMiddleware(t *testing.T) {
	var seen string
	r := gin.New()
	r.POST("/test", func(c *gin.Context) {
		seen = requestctx.ClientIP(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, "", seen)
}
