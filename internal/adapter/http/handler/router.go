package handler

import (
	"time"

	"payflow/config"
	"payflow/internal/adapter/http/middleware"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	MerchantSvc    ports.MerchantService
	OrderSvc       ports.OrderService
	PaymentSvc     ports.PaymentService
	TransactionSvc ports.TransactionService
	ReportingSvc   ports.ReportingService
	WebhookSvc     ports.WebhookService
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	RateLimitCfg   config.RateLimitConfig
	RequestTimeout time.Duration
	CheckoutURL    string
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware. Recovery wraps everything; the request id must be
	// assigned before the logger runs so log lines carry it.
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.ClientContext())
	r.Use(middleware.Timeout(deps.RequestTimeout))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))

	// Health and docs sit outside the rate limit so probes never starve.
	r.GET("/healthz", HealthCheck(deps.HealthCheckers...))
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rl := middleware.RateLimit(deps.RateLimitStore, deps.RateLimitCfg, deps.Logger)
	jwtAuth := middleware.JWTAuth(deps.TokenSvc)
	basicAuth := middleware.BasicAuth(deps.MerchantSvc, deps.Logger)

	// --- Dashboard accounts ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := r.Group("/auth", rl)
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login-json", authHandler.Login)
		auth.POST("/change-password", jwtAuth, authHandler.ChangePassword)
	}

	// --- Merchant self-service (JWT, merchant role) ---
	merchantHandler := NewMerchantHandler(deps.MerchantSvc, deps.CheckoutURL)
	merchants := r.Group("/merchants", rl, jwtAuth, middleware.RequireRole(domain.RoleMerchant))
	{
		merchants.POST("", merchantHandler.Create)
		merchants.GET("/me", merchantHandler.Me)
		merchants.POST("/me/keys", merchantHandler.IssueKey)
		merchants.DELETE("/me/keys/:key_id", merchantHandler.RevokeKey)
		merchants.GET("/me/qr-code", merchantHandler.QRCode)
	}

	// --- Merchant gateway API (Basic auth with API keys) ---
	orderHandler := NewOrderHandler(deps.OrderSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.WebhookSvc)
	v1 := r.Group("/v1", rl, basicAuth)
	{
		v1.POST("/orders", orderHandler.Create)
		v1.GET("/orders", orderHandler.List)
		v1.GET("/orders/:order_ref", orderHandler.Get)
		v1.GET("/orders/:order_ref/payments", orderHandler.ListPayments)

		v1.GET("/payments/:payment_ref", paymentHandler.Get)
		v1.POST("/payments/:payment_ref/capture", paymentHandler.Capture)
		v1.POST("/payments/:payment_ref/refund", paymentHandler.Refund)
		v1.GET("/payments/:payment_ref/refunds", paymentHandler.ListRefunds)

		v1.GET("/webhooks/logs", paymentHandler.WebhookLogs)
	}

	// --- Hosted checkout (public) ---
	checkoutHandler := NewCheckoutHandler(deps.PaymentSvc)
	pay := r.Group("/pay", rl)
	{
		pay.GET("/:order_ref/merchant", checkoutHandler.GetOrder)
		pay.POST("/:order_ref", checkoutHandler.Pay)
	}

	// --- Admin views (JWT, admin role) ---
	adminHandler := NewAdminHandler(deps.ReportingSvc)
	admin := r.Group("/admin", rl, jwtAuth, middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/flagged", adminHandler.Flagged)
		admin.GET("/transactions", adminHandler.Transactions)
	}

	// --- Legacy dashboard transactions (JWT, any role) ---
	txHandler := NewTransactionHandler(deps.TransactionSvc)
	txns := r.Group("/transactions", rl, jwtAuth)
	{
		txns.POST("", txHandler.Create)
		txns.GET("", txHandler.List)
		txns.GET("/:id", txHandler.Get)
		txns.POST("/:id/refund", txHandler.Refund)
	}

	return r
}
