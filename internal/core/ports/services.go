package ports

import (
	"context"
	"time"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TokenService handles JWT operations for dashboard users.
type TokenService interface {
	Generate(user *domain.User) (string, time.Time, error)
	Validate(token string) (*TokenClaims, error)
}

// TokenClaims carries the verified identity extracted from a JWT.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
	Role   domain.Role
}

// HashService handles password and API key secret hashing.
type HashService interface {
	Hash(plain string) (string, error)
	Compare(hashed, plain string) bool
}

// SignatureService signs and verifies webhook bodies.
type SignatureService interface {
	// Sign computes the lowercase hex HMAC-SHA256 of body under secret.
	Sign(secret string, body []byte) string
	Verify(secret string, body []byte, signature string) bool
}

// EncryptionService seals sensitive payer fields at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ReferenceService mints public identifiers and secrets.
type ReferenceService interface {
	NewOrderRef() (string, error)
	NewPaymentRef() (string, error)
	NewRefundRef() (string, error)
	NewKeyID() (string, error)
	NewKeySecret() (string, error)
	NewWebhookSecret() (string, error)
}

// Authorizer decides whether an upstream processor approves an operation.
type Authorizer interface {
	AuthorizePayment(ctx context.Context, payment *domain.Payment) AuthorizationResult
	AuthorizeRefund(ctx context.Context, refund *domain.Refund) AuthorizationResult
	AuthorizeTransaction(ctx context.Context, transaction *domain.Transaction) AuthorizationResult
}

// AuthorizationResult is the processor verdict for a single attempt.
type AuthorizationResult struct {
	Approved    bool
	ErrorCode   string
	ErrorReason string
}

// RegisterRequest carries a dashboard signup.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// LoginRequest carries dashboard credentials.
type LoginRequest struct {
	Email    string
	Password string
}

// LoginResult is the issued session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// AuthService handles user registration and sessions.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// CreateMerchantRequest carries merchant onboarding fields.
type CreateMerchantRequest struct {
	UserID        uuid.UUID
	BusinessName  string
	BusinessEmail string
	Website       *string
	WebhookURL    *string
}

// IssuedKey is returned exactly once at creation; the secret is never
// retrievable afterwards.
type IssuedKey struct {
	KeyID     string
	KeySecret string
	Label     string
	CreatedAt time.Time
}

// MerchantService handles merchant profiles and API credentials.
type MerchantService interface {
	CreateMerchant(ctx context.Context, req CreateMerchantRequest) (*domain.Merchant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error)
	IssueKey(ctx context.Context, merchantID uuid.UUID, label string) (*IssuedKey, error)
	RevokeKey(ctx context.Context, merchantID uuid.UUID, keyID string) error
	// ResolveKey authenticates a key_id/secret pair and returns the owning
	// merchant. Used by the Basic auth middleware.
	ResolveKey(ctx context.Context, keyID, keySecret string) (*domain.Merchant, error)
}

// CreateOrderRequest carries the merchant API order create.
type CreateOrderRequest struct {
	MerchantID     uuid.UUID
	Amount         int64
	Currency       string
	Receipt        *string
	Notes          *string
	AutoCapture    *bool
	IdempotencyKey string
	RequestHash    string
}

// OrderService handles order lifecycle for the merchant API.
type OrderService interface {
	// Create returns replayed=true when the idempotency key matched a prior
	// create and the stored order is returned unchanged.
	Create(ctx context.Context, req CreateOrderRequest) (order *domain.Order, replayed bool, err error)
	Get(ctx context.Context, merchantID uuid.UUID, orderRef string) (*domain.Order, error)
	List(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error)
	ListPayments(ctx context.Context, merchantID uuid.UUID, orderRef string) ([]domain.Payment, error)
	// CheckoutURL builds the hosted checkout link for an order.
	CheckoutURL(orderRef string) string
}

// SubmitPaymentRequest carries a payment attempt against an order.
type SubmitPaymentRequest struct {
	MerchantID uuid.UUID
	OrderRef   string
	Method     domain.PaymentMethod
	VPA        string
	CardNumber string
	CardName   string
	Email      string
	Contact    string
}

// RefundRequest carries a full or partial refund.
type RefundRequest struct {
	MerchantID     uuid.UUID
	PaymentRef     string
	Amount         int64
	Reason         *string
	Notes          *string
	IdempotencyKey *string
}

// PaymentService handles payment attempts, capture and refunds.
type PaymentService interface {
	SubmitPayment(ctx context.Context, req SubmitPaymentRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, error)
	Capture(ctx context.Context, merchantID uuid.UUID, paymentRef string, amount int64) (*domain.Payment, error)
	Refund(ctx context.Context, req RefundRequest) (*domain.Refund, error)
	ListRefunds(ctx context.Context, merchantID uuid.UUID, paymentRef string) ([]domain.Refund, error)
	// CheckoutOrder resolves an order and its merchant for the hosted
	// checkout page without merchant credentials.
	CheckoutOrder(ctx context.Context, orderRef string) (*domain.Order, *domain.Merchant, error)
}

// CreateTransactionRequest carries a legacy dashboard transaction. The HTTP
// edge converts the rupee amount to paise before building this request.
type CreateTransactionRequest struct {
	UserID         uuid.UUID
	AmountPaise    int64
	PaymentMethod  string
	IdempotencyKey *string
}

// TransactionService handles the legacy user-scoped transaction surface.
type TransactionService interface {
	Create(ctx context.Context, req CreateTransactionRequest) (txn *domain.Transaction, replayed bool, err error)
	Get(ctx context.Context, userID uuid.UUID, role domain.Role, id uuid.UUID) (*domain.Transaction, error)
	ListMine(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	Refund(ctx context.Context, userID uuid.UUID, role domain.Role, id uuid.UUID) (*domain.Transaction, error)
}

// ReportingService serves admin aggregates and fraud review queues.
type ReportingService interface {
	GatewayStats(ctx context.Context) (*GatewayStats, error)
	TransactionStats(ctx context.Context) (*TransactionStats, error)
	FlaggedPayments(ctx context.Context, limit int) ([]domain.Payment, error)
	FlaggedTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	AllTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// WebhookService enqueues events inside business transactions and exposes
// delivery history.
type WebhookService interface {
	EnqueuePaymentCaptured(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, payment *domain.Payment) error
	EnqueuePaymentFailed(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, payment *domain.Payment) error
	EnqueueOrderPaid(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, order *domain.Order) error
	EnqueueRefundProcessed(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, refund *domain.Refund, payment *domain.Payment) error
	ListLogs(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookLog, error)
}

// AuditService records security-relevant actions.
type AuditService interface {
	Log(ctx context.Context, actor string, action domain.AuditAction, resourceType, resourceID, details, ip string)
}

// ApiKeyCache caches resolved API keys to spare bcrypt work on every request.
type ApiKeyCache interface {
	Get(ctx context.Context, keyID string) (*domain.ApiKey, *domain.Merchant, error)
	Set(ctx context.Context, key *domain.ApiKey, merchant *domain.Merchant) error
	Delete(ctx context.Context, keyID string) error
}

// IdempotencyCache is the fast path in front of the durable idempotency
// table. Values are opaque serialized responses owned by the order service.
type IdempotencyCache interface {
	Get(ctx context.Context, merchantID uuid.UUID, key string) ([]byte, error)
	Set(ctx context.Context, merchantID uuid.UUID, key string, response []byte, ttl time.Duration) error
	// Reserve atomically claims an in-flight marker for the key so exactly
	// one of a set of concurrent duplicates proceeds to write. Returns false
	// when another request already holds the claim.
	Reserve(ctx context.Context, merchantID uuid.UUID, key string, ttl time.Duration) (bool, error)
	// Unreserve releases the in-flight marker early so a failed request can
	// be retried before the marker expires.
	Unreserve(ctx context.Context, merchantID uuid.UUID, key string) error
}

// TransactionCache caches legacy transaction lookups.
type TransactionCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Set(ctx context.Context, transaction *domain.Transaction, ttl time.Duration) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RateLimitStore implements a fixed-window request counter.
type RateLimitStore interface {
	// Increment bumps the counter for key inside the window and returns the
	// new count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
