package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payflow/config"
	httpHandler "payflow/internal/adapter/http/handler"
	pgStorage "payflow/internal/adapter/storage/postgres"
	redisStorage "payflow/internal/adapter/storage/redis"
	"payflow/internal/core/ports"
	"payflow/internal/service"
	"payflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting PayFlow gateway")

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := pgStorage.EnsureSchema(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	apiKeyRepo := pgStorage.NewApiKeyRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	refundRepo := pgStorage.NewRefundRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	webhookLogRepo := pgStorage.NewWebhookLogRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	statsRepo := pgStorage.NewStatsRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	keyCache := redisStorage.NewApiKeyCache(rdb, cfg.Auth.KeyCacheTTL)
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	txCache := redisStorage.NewTransactionCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.Crypto.AESKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewBcryptHashService()
	tokenSvc := service.NewJWTTokenService(cfg.Auth.SecretKey, cfg.Auth.TokenExpiry, cfg.Auth.Issuer)
	refSvc := service.NewRandomReferenceService()
	fraudEngine := service.NewFraudEngine()
	authorizer := service.NewSimulatedAuthorizer(cfg.Simulator)

	// Initialize business services
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, auditSvc, log)
	merchantSvc := service.NewMerchantService(merchantRepo, apiKeyRepo, keyCache, hashSvc, refSvc, auditSvc, log)
	webhookSvc := service.NewWebhookService(webhookRepo, webhookLogRepo, log)
	orderSvc := service.NewOrderService(
		orderRepo,
		paymentRepo,
		idempotencyRepo,
		idempotencyCache,
		refSvc,
		transactor,
		cfg.Checkout.FrontendURL,
		cfg.Checkout.OrderTTL,
		log,
	)
	paymentSvc := service.NewPaymentService(
		orderRepo,
		paymentRepo,
		refundRepo,
		merchantRepo,
		webhookSvc,
		fraudEngine,
		authorizer,
		encSvc,
		refSvc,
		auditSvc,
		transactor,
		log,
	)
	transactionSvc := service.NewTransactionService(txRepo, txCache, fraudEngine, authorizer, log)
	reportingSvc := service.NewReportingService(statsRepo, paymentRepo, txRepo)

	// Start the webhook dispatcher pool
	dispatcher := service.NewWebhookDispatcher(
		webhookRepo, webhookLogRepo, merchantRepo, sigSvc, nil, cfg.Webhook,
		logger.Component(log, "webhook_dispatcher"),
	)
	dispatcher.Start()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		MerchantSvc:    merchantSvc,
		OrderSvc:       orderSvc,
		PaymentSvc:     paymentSvc,
		TransactionSvc: transactionSvc,
		ReportingSvc:   reportingSvc,
		WebhookSvc:     webhookSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		RateLimitCfg:   cfg.RateLimit,
		RequestTimeout: cfg.Server.RequestTimeout,
		CheckoutURL:    cfg.Checkout.FrontendURL,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         logger.Component(log, "http"),
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop accepting requests first, then drain in-flight deliveries.
	dispatcher.Stop()

	log.Info().Msg("Server exited")
}
