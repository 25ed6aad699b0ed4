// Package requestctx carries per-request metadata (request id, client IP)
// through context.Context so layers below the HTTP adapter can attach it to
// logs and audit entries without importing gin.
package requestctx

import "context"

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyClientIP
)

// WithRequestID returns a context carrying the request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID returns the correlation id, or "" when none was set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

// WithClientIP returns a context carrying the caller's IP address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP returns the caller's IP address, or "" when none was set.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(keyClientIP).(string)
	return ip
}
