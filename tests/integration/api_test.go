package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payflow/config"
	httpHandler "payflow/internal/adapter/http/handler"
	redisStorage "payflow/internal/adapter/storage/redis"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/internal/service"
	"payflow/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testPassword  = "StrongPass123!"
	testAESKey    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testJWTSecret = "integration-test-jwt-secret-0123456789"
	testFrontend  = "http://checkout.local"
)

// testApp runs the full HTTP stack for black-box tests: the real router,
// middleware, services and Redis stores, with miniredis standing in for
// Redis and map-backed repos standing in for postgres.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	rdb    *goredis.Client

	merchants   *inMemoryMerchantRepo
	webhooks    *inMemoryWebhookRepo
	webhookLogs *inMemoryWebhookLogRepo

	log zerolog.Logger
}

// testAppConfig tweaks the few knobs individual tests care about.
type testAppConfig struct {
	orderTTL  time.Duration
	rateLimit config.RateLimitConfig
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWith(t, testAppConfig{orderTTL: 30 * time.Minute})
}

func newTestAppWith(t *testing.T, tc testAppConfig) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	log := logger.New("error", false)

	// Redis stores
	keyCache := redisStorage.NewApiKeyCache(rdb, time.Minute)
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	txCache := redisStorage.NewTransactionCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// In-memory repos
	userRepo := newInMemoryUserRepo()
	merchantRepo := newInMemoryMerchantRepo()
	apiKeyRepo := newInMemoryApiKeyRepo()
	orderRepo := newInMemoryOrderRepo()
	paymentRepo := newInMemoryPaymentRepo()
	refundRepo := newInMemoryRefundRepo()
	idempotencyRepo := newInMemoryIdempotencyRepo()
	txRepo := newInMemoryTransactionRepo()
	webhookRepo := newInMemoryWebhookRepo()
	webhookLogRepo := newInMemoryWebhookLogRepo()
	auditRepo := newInMemoryAuditRepo()
	statsRepo := &inMemoryStatsRepo{
		merchants: merchantRepo,
		orders:    orderRepo,
		payments:  paymentRepo,
		refunds:   refundRepo,
		txns:      txRepo,
	}
	transactor := newLockingTransactor()

	// Core services
	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	hashSvc := service.NewBcryptHashService()
	tokenSvc := service.NewJWTTokenService(testJWTSecret, 24*time.Hour, "payflow-test")
	refSvc := service.NewRandomReferenceService()
	fraudEngine := service.NewFraudEngine()
	// All success rates pinned to 1 so outcomes depend on state, not dice.
	authorizer := service.NewSimulatedAuthorizer(config.SimulatorConfig{
		CheckoutSuccessRate:    1,
		TransactionSuccessRate: 1,
		RefundSuccessRate:      1,
	})

	// Business services
	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, auditSvc, log)
	merchantSvc := service.NewMerchantService(merchantRepo, apiKeyRepo, keyCache, hashSvc, refSvc, auditSvc, log)
	webhookSvc := service.NewWebhookService(webhookRepo, webhookLogRepo, log)
	orderSvc := service.NewOrderService(
		orderRepo, paymentRepo, idempotencyRepo, idempotencyCache,
		refSvc, transactor, testFrontend, tc.orderTTL, log,
	)
	paymentSvc := service.NewPaymentService(
		orderRepo, paymentRepo, refundRepo, merchantRepo, webhookSvc,
		fraudEngine, authorizer, encSvc, refSvc, auditSvc, transactor, log,
	)
	transactionSvc := service.NewTransactionService(txRepo, txCache, fraudEngine, authorizer, log)
	reportingSvc := service.NewReportingService(statsRepo, paymentRepo, txRepo)

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
		RateLimitCfg:   tc.rateLimit,
		RequestTimeout: 10 * time.Second,
		CheckoutURL:    testFrontend,
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	return &testApp{
		server:      httptest.NewServer(router),
		redis:       mr,
		rdb:         rdb,
		merchants:   merchantRepo,
		webhooks:    webhookRepo,
		webhookLogs: webhookLogRepo,
		log:         log,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.rdb.Close()
	a.redis.Close()
}

// startDispatcher runs a webhook worker pool against the app's outbox for
// the duration of the test.
func (a *testApp) startDispatcher(t *testing.T, cfg config.WebhookConfig) {
	t.Helper()
	d := service.NewWebhookDispatcher(
		a.webhooks, a.webhookLogs, a.merchants,
		service.NewHMACSignatureService(), nil, cfg, a.log,
	)
	d.Start()
	t.Cleanup(d.Stop)
}

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		SigningSecret: "fallback-signing-secret",
		Workers:       2,
		PollInterval:  25 * time.Millisecond,
		Timeout:       2 * time.Second,
		MaxAttempts:   8,
		LeaseDuration: time.Minute,
	}
}

// --- HTTP helpers ---

// call issues one JSON request and returns the response along with its fully
// read body. The response body is already closed.
func (a *testApp) call(t *testing.T, method, path string, body any, mod func(*http.Request)) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mod != nil {
		mod(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func asBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func asAPIKey(keyID, keySecret string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(keyID, keySecret) }
}

func unmarshalMap(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m), "body: %s", raw)
	return m
}

// errorCode extracts the code from an error envelope.
func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	return body.Error.Code
}

// --- Account helpers ---

func (a *testApp) registerUser(t *testing.T, email, role string) string {
	t.Helper()
	resp, raw := a.call(t, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": testPassword,
		"role":     role,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register: %s", raw)
	return a.login(t, email, testPassword)
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, raw := a.call(t, http.MethodPost, "/auth/login-json", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "login: %s", raw)
	body := unmarshalMap(t, raw)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

// merchantCreds bundles everything a test needs to act as one merchant.
type merchantCreds struct {
	token      string
	merchantID string
	keyID      string
	keySecret  string
}

// onboardMerchant registers a merchant account, creates the profile and
// issues an API key pair.
func (a *testApp) onboardMerchant(t *testing.T, email, webhookURL string) merchantCreds {
	t.Helper()
	token := a.registerUser(t, email, "merchant")

	profile := map[string]any{
		"business_name":  "Acme Traders",
		"business_email": email,
	}
	if webhookURL != "" {
		profile["webhook_url"] = webhookURL
	}
	resp, raw := a.call(t, http.MethodPost, "/merchants", profile, asBearer(token))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create merchant: %s", raw)
	merchant := unmarshalMap(t, raw)

	resp, raw = a.call(t, http.MethodPost, "/merchants/me/keys", map[string]string{"label": "test"}, asBearer(token))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "issue key: %s", raw)
	key := unmarshalMap(t, raw)

	return merchantCreds{
		token:      token,
		merchantID: merchant["id"].(string),
		keyID:      key["key_id"].(string),
		keySecret:  key["key_secret"].(string),
	}
}

// createOrder posts an order through the gateway API and returns the decoded
// response. An empty idemKey leaves replay semantics to the server.
func (a *testApp) createOrder(t *testing.T, creds merchantCreds, body map[string]any, idemKey string) map[string]any {
	t.Helper()
	resp, raw := a.call(t, http.MethodPost, "/v1/orders", body, func(r *http.Request) {
		r.SetBasicAuth(creds.keyID, creds.keySecret)
		if idemKey != "" {
			r.Header.Set("Idempotency-Key", idemKey)
		}
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create order: %s", raw)
	return unmarshalMap(t, raw)
}

// payOrder submits a checkout payment and requires the expected status code.
func (a *testApp) payOrder(t *testing.T, orderRef string, body map[string]any, wantStatus int) map[string]any {
	t.Helper()
	resp, raw := a.call(t, http.MethodPost, "/pay/"+orderRef, body, nil)
	require.Equal(t, wantStatus, resp.StatusCode, "pay: %s", raw)
	return unmarshalMap(t, raw)
}

// --- Health ---

func TestIntegration_Healthz(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, raw := app.call(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := unmarshalMap(t, raw)
	assert.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	redisCheck := checks["redis"].(map[string]any)
	assert.Equal(t, "ok", redisCheck["status"])
}

// --- Dashboard accounts ---

func TestIntegration_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, raw := app.call(t, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Asha",
		"email":    "Asha@Example.com",
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register: %s", raw)

	user := unmarshalMap(t, raw)
	assert.Equal(t, "asha@example.com", user["email"], "email should be normalized")
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, string(raw), testPassword)
	assert.NotContains(t, string(raw), "password")

	// Login works with any casing of the same address.
	token := app.login(t, "ASHA@example.com", testPassword)
	assert.NotEmpty(t, token)

	resp, raw = app.call(t, http.MethodPost, "/auth/login-json", map[string]string{
		"email":    "asha@example.com",
		"password": "wrong-password",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", errorCode(t, raw))
}

func TestIntegration_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	body := map[string]string{
		"name":     "First",
		"email":    "taken@example.com",
		"password": testPassword,
	}
	resp, _ := app.call(t, http.MethodPost, "/auth/register", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := app.call(t, http.MethodPost, "/auth/register", body, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))
}

func TestIntegration_ChangePassword(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.registerUser(t, "rotate@example.com", "")

	resp, raw := app.call(t, http.MethodPost, "/auth/change-password", map[string]string{
		"current_password": "not-the-password",
		"new_password":     "NewPass456!",
	}, asBearer(token))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", errorCode(t, raw))

	resp, _ = app.call(t, http.MethodPost, "/auth/change-password", map[string]string{
		"current_password": testPassword,
		"new_password":     "NewPass456!",
	}, asBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password is dead, new one works.
	resp, _ = app.call(t, http.MethodPost, "/auth/login-json", map[string]string{
		"email":    "rotate@example.com",
		"password": testPassword,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	app.login(t, "rotate@example.com", "NewPass456!")
}

// --- Merchant onboarding ---

func TestIntegration_MerchantOnboarding(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.registerUser(t, "owner@shop.example", "merchant")

	// No profile yet.
	resp, raw := app.call(t, http.MethodGet, "/merchants/me", nil, asBearer(token))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorCode(t, raw))

	resp, raw = app.call(t, http.MethodPost, "/merchants", map[string]any{
		"business_name":  "Chai Point",
		"business_email": "owner@shop.example",
		"website":        "https://chai.example",
	}, asBearer(token))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create merchant: %s", raw)

	merchant := unmarshalMap(t, raw)
	assert.Equal(t, "Chai Point", merchant["business_name"])
	assert.Equal(t, true, merchant["webhook_secret_set"])
	merchantID := merchant["id"].(string)

	// The signing secret itself must never appear in any response.
	stored, err := app.merchants.GetByID(context.Background(), uuid.MustParse(merchantID))
	require.NoError(t, err)
	require.NotEmpty(t, stored.WebhookSecret)
	assert.NotContains(t, string(raw), stored.WebhookSecret)

	// Second profile for the same user is rejected.
	resp, raw = app.call(t, http.MethodPost, "/merchants", map[string]any{
		"business_name":  "Another",
		"business_email": "owner@shop.example",
	}, asBearer(token))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))

	resp, raw = app.call(t, http.MethodGet, "/merchants/me/qr-code", nil, asBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	qr := unmarshalMap(t, raw)
	assert.Equal(t, testFrontend+"/m/"+merchantID, qr["checkout_url"])
}

func TestIntegration_KeyRevocation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "keys@shop.example", "")

	// The issued pair authenticates the gateway API.
	resp, _ := app.call(t, http.MethodGet, "/v1/orders", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.call(t, http.MethodDelete, "/merchants/me/keys/"+creds.keyID, nil, asBearer(creds.token))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Revocation evicts the cache entry, so the key dies immediately.
	resp, raw := app.call(t, http.MethodGet, "/v1/orders", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", errorCode(t, raw))

	// Revoking twice is a 404.
	resp, _ = app.call(t, http.MethodDelete, "/merchants/me/keys/"+creds.keyID, nil, asBearer(creds.token))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// --- Orders ---

func TestIntegration_OrderIdempotency(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "orders@shop.example", "")
	body := map[string]any{"amount": int64(25000), "currency": "INR"}

	first := app.createOrder(t, creds, body, "order-key-1")
	orderRef := first["order_ref"].(string)
	assert.Equal(t, "created", first["status"])
	assert.Equal(t, float64(25000), first["amount"])

	// Same key, same body: replayed from the Redis fast path.
	resp, raw := app.call(t, http.MethodPost, "/v1/orders", body, func(r *http.Request) {
		r.SetBasicAuth(creds.keyID, creds.keySecret)
		r.Header.Set("Idempotency-Key", "order-key-1")
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "replay: %s", raw)
	assert.Equal(t, "true", resp.Header.Get("X-Idempotent-Replayed"))
	assert.Equal(t, orderRef, unmarshalMap(t, raw)["order_ref"])

	// Wipe the cache: the durable record still answers the replay.
	app.redis.FlushAll()
	resp, raw = app.call(t, http.MethodPost, "/v1/orders", body, func(r *http.Request) {
		r.SetBasicAuth(creds.keyID, creds.keySecret)
		r.Header.Set("Idempotency-Key", "order-key-1")
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "durable replay: %s", raw)
	assert.Equal(t, "true", resp.Header.Get("X-Idempotent-Replayed"))
	assert.Equal(t, orderRef, unmarshalMap(t, raw)["order_ref"])

	// Same key, different body: refused.
	resp, raw = app.call(t, http.MethodPost, "/v1/orders", map[string]any{
		"amount": int64(99999), "currency": "INR",
	}, func(r *http.Request) {
		r.SetBasicAuth(creds.keyID, creds.keySecret)
		r.Header.Set("Idempotency-Key", "order-key-1")
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))
}

func TestIntegration_OrderVisibility(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	owner := app.onboardMerchant(t, "owner@a.example", "")
	other := app.onboardMerchant(t, "other@b.example", "")

	order := app.createOrder(t, owner, map[string]any{"amount": int64(500), "currency": "USD"}, "")
	orderRef := order["order_ref"].(string)

	resp, raw := app.call(t, http.MethodGet, "/v1/orders/"+orderRef, nil, asAPIKey(owner.keyID, owner.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "USD", unmarshalMap(t, raw)["currency"])

	// Another merchant's key sees a 404, not a 403: refs are not enumerable.
	resp, _ = app.call(t, http.MethodGet, "/v1/orders/"+orderRef, nil, asAPIKey(other.keyID, other.keySecret))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = app.call(t, http.MethodGet, "/v1/orders/pf_order_missing", nil, asAPIKey(owner.keyID, owner.keySecret))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = app.call(t, http.MethodGet, "/v1/orders", nil, asAPIKey(owner.keyID, owner.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	assert.Equal(t, orderRef, list[0]["order_ref"])
}

// --- Checkout ---

func TestIntegration_CheckoutAutoCapture(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "capture@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(12000), "currency": "INR"}, "")
	orderRef := order["order_ref"].(string)

	// The checkout page first shows who is being paid.
	resp, raw := app.call(t, http.MethodGet, "/pay/"+orderRef+"/merchant", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := unmarshalMap(t, raw)
	assert.Equal(t, "Acme Traders", page["merchant_name"])
	assert.Equal(t, float64(12000), page["amount"])

	payment := app.payOrder(t, orderRef, map[string]any{
		"method": "upi",
		"vpa":    "payer@okhdfc",
	}, http.StatusCreated)
	assert.Equal(t, "captured", payment["status"])
	assert.Equal(t, float64(12000), payment["amount"])
	paymentRef := payment["payment_ref"].(string)

	// A paid order accepts no further attempts.
	resp, raw = app.call(t, http.MethodPost, "/pay/"+orderRef, map[string]any{
		"method": "upi",
		"vpa":    "late@okhdfc",
	}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))

	resp, raw = app.call(t, http.MethodGet, "/v1/orders/"+orderRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := unmarshalMap(t, raw)
	assert.Equal(t, "paid", got["status"])
	assert.Equal(t, float64(1), got["attempts"])

	resp, raw = app.call(t, http.MethodGet, "/v1/orders/"+orderRef+"/payments", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payments []map[string]any
	require.NoError(t, json.Unmarshal(raw, &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, paymentRef, payments[0]["payment_ref"])
	assert.NotEmpty(t, payments[0]["captured_at"])
}

func TestIntegration_CheckoutDropsCardCredentials(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "cards@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(9900), "currency": "INR"}, "")
	orderRef := order["order_ref"].(string)

	resp, raw := app.call(t, http.MethodPost, "/pay/"+orderRef, map[string]any{
		"method":      "card",
		"card_number": "4111 1111 1111 1234",
		"card_expiry": "12/29",
		"card_cvv":    "123",
		"card_name":   "A PAYER",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "pay: %s", raw)

	// The payer-facing response carries no card data at all.
	assert.NotContains(t, string(raw), "4111")
	assert.NotContains(t, string(raw), "12/29")
	assert.NotContains(t, string(raw), "card_last4")

	// The merchant view keeps only the redacted card summary.
	paymentRef := unmarshalMap(t, raw)["payment_ref"].(string)
	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+paymentRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	merchantView := unmarshalMap(t, raw)
	assert.Equal(t, "1234", merchantView["card_last4"])
	assert.Equal(t, "Visa", merchantView["card_network"])
	assert.NotContains(t, string(raw), "4111 1111")
}

func TestIntegration_ManualCapture(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "manual@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{
		"amount": int64(30000), "currency": "INR", "auto_capture": false,
	}, "")
	orderRef := order["order_ref"].(string)

	payment := app.payOrder(t, orderRef, map[string]any{
		"method": "netbanking",
		"email":  "payer@example.com",
	}, http.StatusCreated)
	assert.Equal(t, "authorized", payment["status"])
	paymentRef := payment["payment_ref"].(string)

	// Authorized but not captured: the order is attempted, not paid.
	resp, raw := app.call(t, http.MethodGet, "/v1/orders/"+orderRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attempted", unmarshalMap(t, raw)["status"])

	// Partial capture is not a thing.
	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/capture", map[string]any{
		"amount": int64(1),
	}, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", errorCode(t, raw))

	// Empty body captures the full authorized amount.
	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/capture", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode, "capture: %s", raw)
	captured := unmarshalMap(t, raw)
	assert.Equal(t, "captured", captured["status"])
	assert.NotEmpty(t, captured["captured_at"])

	// Capturing again is a no-op that returns the unchanged payment.
	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/capture", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, captured["captured_at"], unmarshalMap(t, raw)["captured_at"])

	resp, raw = app.call(t, http.MethodGet, "/v1/orders/"+orderRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", unmarshalMap(t, raw)["status"])
}

func TestIntegration_ExpiredOrder(t *testing.T) {
	// Orders in this app are born expired.
	app := newTestAppWith(t, testAppConfig{orderTTL: -time.Second})
	defer app.close()

	creds := app.onboardMerchant(t, "expired@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(1000), "currency": "INR"}, "")
	orderRef := order["order_ref"].(string)

	resp, raw := app.call(t, http.MethodPost, "/pay/"+orderRef, map[string]any{
		"method": "upi",
		"vpa":    "payer@okhdfc",
	}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))
	assert.Contains(t, string(raw), "expired")
}

// --- Refunds ---

func TestIntegration_RefundLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "refunds@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(10000), "currency": "INR"}, "")
	orderRef := order["order_ref"].(string)
	payment := app.payOrder(t, orderRef, map[string]any{"method": "upi", "vpa": "payer@okaxis"}, http.StatusCreated)
	paymentRef := payment["payment_ref"].(string)

	// Partial refund.
	resp, raw := app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/refund", map[string]any{
		"amount": int64(4000),
		"reason": "damaged item",
	}, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "refund: %s", raw)
	refund := unmarshalMap(t, raw)
	assert.Equal(t, "processed", refund["status"])
	assert.Equal(t, float64(4000), refund["amount"])

	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+paymentRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := unmarshalMap(t, raw)
	assert.Equal(t, "partially_refunded", got["status"])
	assert.Equal(t, float64(4000), got["amount_refunded"])

	// Empty body refunds whatever remains.
	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/refund", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "refund rest: %s", raw)
	assert.Equal(t, float64(6000), unmarshalMap(t, raw)["amount"])

	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+paymentRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = unmarshalMap(t, raw)
	assert.Equal(t, "refunded", got["status"])
	assert.Equal(t, float64(10000), got["amount_refunded"])

	// Fully refunded payments refuse further refunds.
	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/refund", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))

	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+paymentRef+"/refunds", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refunds []map[string]any
	require.NoError(t, json.Unmarshal(raw, &refunds))
	assert.Len(t, refunds, 2)
}

func TestIntegration_RefundGuards(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "guards@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(10000), "currency": "INR"}, "")
	payment := app.payOrder(t, order["order_ref"].(string), map[string]any{"method": "upi", "vpa": "payer@okicici"}, http.StatusCreated)
	paymentRef := payment["payment_ref"].(string)

	// More than the captured amount.
	resp, raw := app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/refund", map[string]any{
		"amount": int64(20000),
	}, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(raw), "exceeds")

	// An idempotency key makes the refund replay-safe.
	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/refund", map[string]any{
		"amount":          int64(2500),
		"idempotency_key": "rfd-1",
	}, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "refund: %s", raw)
	refundRef := unmarshalMap(t, raw)["refund_ref"].(string)

	resp, raw = app.call(t, http.MethodPost, "/v1/payments/"+paymentRef+"/refund", map[string]any{
		"amount":          int64(2500),
		"idempotency_key": "rfd-1",
	}, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, refundRef, unmarshalMap(t, raw)["refund_ref"])

	// The replay did not move any more money.
	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+paymentRef, nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2500), unmarshalMap(t, raw)["amount_refunded"])
}

// --- Fraud flagging ---

func TestIntegration_FraudFlagging(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "fraud@shop.example", "")
	adminToken := app.registerUser(t, "admin@payflow.example", "admin")

	// Clean payment: small amount, fresh payer.
	cleanOrder := app.createOrder(t, creds, map[string]any{"amount": int64(1500), "currency": "INR"}, "")
	clean := app.payOrder(t, cleanOrder["order_ref"].(string), map[string]any{"method": "upi", "vpa": "dup@okaxis"}, http.StatusCreated)
	assert.Equal(t, false, clean["is_flagged"])

	// Same payer repeats the same amount inside the window.
	dupOrder := app.createOrder(t, creds, map[string]any{"amount": int64(1500), "currency": "INR"}, "")
	dup := app.payOrder(t, dupOrder["order_ref"].(string), map[string]any{"method": "upi", "vpa": "dup@okaxis"}, http.StatusCreated)
	assert.Equal(t, true, dup["is_flagged"])
	assert.Equal(t, "captured", dup["status"], "flags decorate, they do not block")

	// Over the high-value threshold.
	bigOrder := app.createOrder(t, creds, map[string]any{"amount": int64(60000), "currency": "INR"}, "")
	big := app.payOrder(t, bigOrder["order_ref"].(string), map[string]any{"method": "upi", "vpa": "big@okhdfc"}, http.StatusCreated)
	assert.Equal(t, true, big["is_flagged"])

	// Malformed VPA.
	badOrder := app.createOrder(t, creds, map[string]any{"amount": int64(2000), "currency": "INR"}, "")
	bad := app.payOrder(t, badOrder["order_ref"].(string), map[string]any{"method": "upi", "vpa": "notavpa"}, http.StatusCreated)
	assert.Equal(t, true, bad["is_flagged"])

	// The merchant view names the tripped rules.
	resp, raw := app.call(t, http.MethodGet, "/v1/payments/"+dup["payment_ref"].(string), nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "duplicate_amount")

	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+big["payment_ref"].(string), nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "high_value")

	resp, raw = app.call(t, http.MethodGet, "/v1/payments/"+bad["payment_ref"].(string), nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "invalid_vpa")

	// All three land in the admin review queue; the clean one does not.
	resp, raw = app.call(t, http.MethodGet, "/admin/flagged", nil, asBearer(adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flagged := unmarshalMap(t, raw)
	payments := flagged["payments"].([]any)
	refs := make(map[string]bool, len(payments))
	for _, p := range payments {
		refs[p.(map[string]any)["payment_ref"].(string)] = true
	}
	assert.Len(t, refs, 3)
	assert.True(t, refs[dup["payment_ref"].(string)])
	assert.True(t, refs[big["payment_ref"].(string)])
	assert.True(t, refs[bad["payment_ref"].(string)])
	assert.False(t, refs[clean["payment_ref"].(string)])
}

// --- Webhooks ---

type receivedWebhook struct {
	event     string
	signature string
	body      []byte
}

// newWebhookReceiver returns a server that records deliveries. When
// failFirst is set, the very first request gets a 500 before the receiver
// recovers.
func newWebhookReceiver(t *testing.T, failFirst bool) (*httptest.Server, func() []receivedWebhook) {
	t.Helper()

	var (
		mu       sync.Mutex
		received []receivedWebhook
		requests atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if failFirst && requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		received = append(received, receivedWebhook{
			event:     r.Header.Get("X-PayFlow-Event"),
			signature: r.Header.Get("X-PayFlow-Signature"),
			body:      body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	snapshot := func() []receivedWebhook {
		mu.Lock()
		defer mu.Unlock()
		return append([]receivedWebhook(nil), received...)
	}
	return srv, snapshot
}

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestIntegration_WebhookDelivery(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	receiver, snapshot := newWebhookReceiver(t, false)
	creds := app.onboardMerchant(t, "hooks@shop.example", receiver.URL)
	app.startDispatcher(t, testWebhookConfig())

	order := app.createOrder(t, creds, map[string]any{"amount": int64(8000), "currency": "INR"}, "")
	payment := app.payOrder(t, order["order_ref"].(string), map[string]any{"method": "upi", "vpa": "payer@okhdfc"}, http.StatusCreated)

	// An auto-captured payment announces both the payment and the order.
	ctx := context.Background()
	merchantID := uuid.MustParse(creds.merchantID)
	require.Eventually(t, func() bool {
		events, err := app.webhooks.ListByMerchant(ctx, merchantID, 10)
		if err != nil || len(events) != 2 {
			return false
		}
		for _, e := range events {
			if e.Status != domain.WebhookStatusDelivered {
				return false
			}
		}
		return len(snapshot()) == 2
	}, 5*time.Second, 25*time.Millisecond)

	stored, err := app.merchants.GetByID(ctx, merchantID)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, hook := range snapshot() {
		seen[hook.event] = true

		// Signatures are computed over the exact bytes on the wire with the
		// merchant's own secret.
		assert.Equal(t, hmacHex(stored.WebhookSecret, hook.body), hook.signature)

		var env struct {
			Event     string          `json:"event"`
			CreatedAt string          `json:"created_at"`
			Payload   json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(hook.body, &env))
		assert.Equal(t, hook.event, env.Event)
		_, err := time.Parse(time.RFC3339, env.CreatedAt)
		assert.NoError(t, err)

		if env.Event == domain.EventPaymentCaptured {
			payload := map[string]any{}
			require.NoError(t, json.Unmarshal(env.Payload, &payload))
			assert.Equal(t, payment["payment_ref"], payload["payment_ref"])
			assert.Equal(t, order["order_ref"], payload["order_ref"])
			assert.Equal(t, float64(8000), payload["amount"])
		}
	}
	assert.True(t, seen[domain.EventPaymentCaptured])
	assert.True(t, seen[domain.EventOrderPaid])
}

// webhookLogSummary counts delivery log outcomes via the merchant API. It
// avoids test assertions so it can run inside an Eventually probe.
func (a *testApp) webhookLogSummary(creds merchantCreds) (succeeded, failed int) {
	req, err := http.NewRequest(http.MethodGet, a.server.URL+"/v1/webhooks/logs", nil)
	if err != nil {
		return 0, 0
	}
	req.SetBasicAuth(creds.keyID, creds.keySecret)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, 0
	}
	defer resp.Body.Close()

	var logs []struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&logs); err != nil {
		return 0, 0
	}
	for _, l := range logs {
		if l.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func TestIntegration_WebhookRetry(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	receiver, snapshot := newWebhookReceiver(t, true)
	creds := app.onboardMerchant(t, "retry@shop.example", receiver.URL)
	app.startDispatcher(t, testWebhookConfig())

	order := app.createOrder(t, creds, map[string]any{"amount": int64(700), "currency": "INR"}, "")
	app.payOrder(t, order["order_ref"].(string), map[string]any{"method": "upi", "vpa": "payer@okhdfc"}, http.StatusCreated)

	// One delivery bounces, gets rescheduled with backoff and lands on the
	// second attempt. Every attempt leaves a log row.
	require.Eventually(t, func() bool {
		succeeded, failed := app.webhookLogSummary(creds)
		return succeeded == 2 && failed == 1
	}, 15*time.Second, 100*time.Millisecond)

	delivered := make(map[string]bool)
	for _, hook := range snapshot() {
		delivered[hook.event] = true
	}
	assert.True(t, delivered[domain.EventPaymentCaptured])
	assert.True(t, delivered[domain.EventOrderPaid])

	resp, raw := app.call(t, http.MethodGet, "/v1/webhooks/logs", nil, asAPIKey(creds.keyID, creds.keySecret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &logs))
	require.Len(t, logs, 3)
	var sawFailure bool
	for _, l := range logs {
		if l["success"] == false {
			sawFailure = true
			assert.Equal(t, float64(http.StatusInternalServerError), l["response_status"])
		}
	}
	assert.True(t, sawFailure)
}

func TestIntegration_NoWebhookNoOutbox(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "silent@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(900), "currency": "INR"}, "")
	app.payOrder(t, order["order_ref"].(string), map[string]any{"method": "upi", "vpa": "payer@okhdfc"}, http.StatusCreated)

	events, err := app.webhooks.ListByMerchant(context.Background(), uuid.MustParse(creds.merchantID), 10)
	require.NoError(t, err)
	assert.Empty(t, events, "merchants without a webhook URL get no outbox rows")
}

// --- Legacy dashboard transactions ---

func TestIntegration_LegacyTransactions(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.registerUser(t, "legacy@example.com", "")

	resp, raw := app.call(t, http.MethodPost, "/transactions", map[string]any{
		"amount":          125.50,
		"payment_method":  "upi",
		"idempotency_key": "txn-1",
	}, asBearer(token))
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create: %s", raw)
	txn := unmarshalMap(t, raw)
	assert.Equal(t, 125.50, txn["amount"], "legacy surface speaks rupees")
	assert.Equal(t, "success", txn["status"])
	txnID := txn["id"].(string)

	// Replaying the key returns the stored row with 200.
	resp, raw = app.call(t, http.MethodPost, "/transactions", map[string]any{
		"amount":          125.50,
		"payment_method":  "upi",
		"idempotency_key": "txn-1",
	}, asBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, txnID, unmarshalMap(t, raw)["id"])

	resp, raw = app.call(t, http.MethodGet, "/transactions/"+txnID, nil, asBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 125.50, unmarshalMap(t, raw)["amount"])

	resp, raw = app.call(t, http.MethodGet, "/transactions", nil, asBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)

	resp, raw = app.call(t, http.MethodPost, "/transactions/"+txnID+"/refund", nil, asBearer(token))
	require.Equal(t, http.StatusOK, resp.StatusCode, "refund: %s", raw)
	assert.Equal(t, "refunded", unmarshalMap(t, raw)["status"])

	// A refunded transaction cannot be refunded again.
	resp, raw = app.call(t, http.MethodPost, "/transactions/"+txnID+"/refund", nil, asBearer(token))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, raw))

	// The legacy surface rejects wallet payments.
	resp, raw = app.call(t, http.MethodPost, "/transactions", map[string]any{
		"amount":         10.0,
		"payment_method": "wallet",
	}, asBearer(token))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "payment_method must be one of")
}

func TestIntegration_LegacyTransactionVisibility(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	owner := app.registerUser(t, "txowner@example.com", "")
	stranger := app.registerUser(t, "stranger@example.com", "")
	admin := app.registerUser(t, "txadmin@example.com", "admin")

	resp, raw := app.call(t, http.MethodPost, "/transactions", map[string]any{
		"amount": 50.0, "payment_method": "card",
	}, asBearer(owner))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	txnID := unmarshalMap(t, raw)["id"].(string)

	resp, raw = app.call(t, http.MethodGet, "/transactions/"+txnID, nil, asBearer(stranger))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, raw))

	resp, raw = app.call(t, http.MethodPost, "/transactions/"+txnID+"/refund", nil, asBearer(stranger))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, raw))

	// Admins see and may refund anything.
	resp, _ = app.call(t, http.MethodGet, "/transactions/"+txnID, nil, asBearer(admin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// --- Admin views ---

func TestIntegration_AdminStats(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	creds := app.onboardMerchant(t, "stats@shop.example", "")
	order := app.createOrder(t, creds, map[string]any{"amount": int64(10000), "currency": "INR"}, "")
	app.payOrder(t, order["order_ref"].(string), map[string]any{"method": "upi", "vpa": "payer@okhdfc"}, http.StatusCreated)

	userToken := app.registerUser(t, "statsuser@example.com", "")
	resp, _ := app.call(t, http.MethodPost, "/transactions", map[string]any{
		"amount": 125.50, "payment_method": "upi",
	}, asBearer(userToken))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	adminToken := app.registerUser(t, "statsadmin@example.com", "admin")
	resp, raw := app.call(t, http.MethodGet, "/admin/stats", nil, asBearer(adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode, "stats: %s", raw)

	stats := unmarshalMap(t, raw)
	gateway := stats["gateway"].(map[string]any)
	assert.Equal(t, float64(1), gateway["total_merchants"])
	assert.Equal(t, float64(1), gateway["total_orders"])
	assert.Equal(t, float64(1), gateway["total_payments"])
	assert.Equal(t, float64(10000), gateway["total_volume_paise"])
	assert.Equal(t, float64(0), gateway["total_refunds"])

	transactions := stats["transactions"].(map[string]any)
	assert.Equal(t, float64(1), transactions["total_transactions"])
	assert.Equal(t, float64(12550), transactions["total_amount_paise"])
	assert.Equal(t, float64(1), transactions["success_count"])

	resp, raw = app.call(t, http.MethodGet, "/admin/transactions", nil, asBearer(adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(raw, &all))
	assert.Len(t, all, 1)
}

// --- Auth guards ---

func TestIntegration_AuthGuards(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	// Gateway API without credentials.
	resp, raw := app.call(t, http.MethodGet, "/v1/orders", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
	assert.Equal(t, "unauthenticated", errorCode(t, raw))

	// Gateway API with a made-up key pair.
	resp, _ = app.call(t, http.MethodGet, "/v1/orders", nil, asAPIKey("pf_key_bogus", "pf_sec_bogus"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Dashboard without a token.
	resp, raw = app.call(t, http.MethodGet, "/merchants/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", errorCode(t, raw))

	// Dashboard with a garbage token.
	resp, _ = app.call(t, http.MethodGet, "/merchants/me", nil, asBearer("not.a.jwt"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Role boundaries: plain users cannot touch merchant or admin routes.
	userToken := app.registerUser(t, "plain@example.com", "")
	resp, raw = app.call(t, http.MethodPost, "/merchants", map[string]any{
		"business_name": "Nope", "business_email": "plain@example.com",
	}, asBearer(userToken))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorCode(t, raw))

	resp, _ = app.call(t, http.MethodGet, "/admin/stats", nil, asBearer(userToken))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// --- Rate limiting ---

func TestIntegration_RateLimit(t *testing.T) {
	app := newTestAppWith(t, testAppConfig{
		orderTTL: 30 * time.Minute,
		rateLimit: config.RateLimitConfig{
			Enabled:  true,
			Requests: 3,
			Window:   time.Minute,
		},
	})
	defer app.close()

	body := map[string]string{"email": "nobody@example.com", "password": "wrong"}

	for i := 0; i < 3; i++ {
		resp, _ := app.call(t, http.MethodPost, "/auth/login-json", body, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "3", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, raw := app.call(t, http.MethodPost, "/auth/login-json", body, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", errorCode(t, raw))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}
