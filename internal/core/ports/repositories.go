package ports

import (
	"context"
	"time"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for dashboard users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error)
}

// ApiKeyRepository defines persistence operations for merchant API keys.
type ApiKeyRepository interface {
	Create(ctx context.Context, key *domain.ApiKey) error
	GetByKeyID(ctx context.Context, keyID string) (*domain.ApiKey, error)
	// Revoke flips active=false. Returns false when the key does not exist or
	// belongs to another merchant.
	Revoke(ctx context.Context, merchantID uuid.UUID, keyID string) (bool, error)
	// TouchLastUsed bumps last_used_at. Best-effort; failures are logged only.
	TouchLastUsed(ctx context.Context, keyID string, usedAt time.Time) error
}

// OrderRepository defines persistence operations for orders.
// Methods accepting pgx.Tx run inside transaction blocks for pessimistic locking.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByRef(ctx context.Context, orderRef string) (*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Order, error)
	List(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error)
	// RecordAttempt advances status and increments the attempt counter.
	RecordAttempt(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error
	SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error)
	GetByRefForUpdate(ctx context.Context, tx pgx.Tx, paymentRef string) (*domain.Payment, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error)
	// ExistsLiveForOrder reports whether the order already has a non-failed
	// payment. Evaluated under the caller's transaction.
	ExistsLiveForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, capturedAt *time.Time) error
	// ApplyRefund records refunded amount and the resulting status.
	ApplyRefund(ctx context.Context, tx pgx.Tx, id uuid.UUID, amountRefunded int64, status domain.PaymentStatus) error
	ListFlagged(ctx context.Context, limit int) ([]domain.Payment, error)
	// History summarizes the payer's attempts inside the trailing fraud window.
	History(ctx context.Context, payerKey string, since time.Time) (*domain.FraudHistory, error)
}

// RefundRepository defines persistence operations for refunds.
type RefundRepository interface {
	Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error)
	GetByIdempotencyKey(ctx context.Context, paymentID uuid.UUID, key string) (*domain.Refund, error)
	// SumProcessed re-derives the refunded total under the caller's lock.
	SumProcessed(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error)
}

// WebhookRepository defines the durable outbox operations.
type WebhookRepository interface {
	// Enqueue appends an event in the same transaction as the state change.
	Enqueue(ctx context.Context, tx pgx.Tx, event *domain.WebhookEvent) error
	// ClaimNext atomically leases the next due pending event for a worker.
	// Returns (nil, nil) when nothing is due.
	ClaimNext(ctx context.Context, lease time.Duration) (*domain.WebhookEvent, error)
	MarkDelivered(ctx context.Context, id int64, responseCode int, responseBody string) error
	// Reschedule releases the lease and plans the next attempt.
	Reschedule(ctx context.Context, id int64, nextAttemptAt time.Time, responseCode *int, responseBody string) error
	MarkFailed(ctx context.Context, id int64, responseCode *int, responseBody string) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookEvent, error)
}

// WebhookLogRepository records delivery attempts.
type WebhookLogRepository interface {
	Create(ctx context.Context, log *domain.WebhookLog) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookLog, error)
}

// IdempotencyRepository defines durable idempotency records for order creates.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, merchantID uuid.UUID, key string) (*domain.IdempotencyRecord, error)
}

// TransactionRepository defines persistence for legacy dashboard transactions.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	ListAll(ctx context.Context, limit int) ([]domain.Transaction, error)
	ListFlagged(ctx context.Context, limit int) ([]domain.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error
	History(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.FraudHistory, error)
}

// StatsRepository serves the read-only admin aggregates.
type StatsRepository interface {
	GatewayStats(ctx context.Context) (*GatewayStats, error)
	TransactionStats(ctx context.Context) (*TransactionStats, error)
}

// GatewayStats aggregates the merchant-facing gateway tables.
type GatewayStats struct {
	TotalMerchants   int64 `json:"total_merchants"`
	TotalOrders      int64 `json:"total_orders"`
	TotalPayments    int64 `json:"total_payments"`
	TotalVolumePaise int64 `json:"total_volume_paise"`
	TotalRefunds     int64 `json:"total_refunds"`
}

// TransactionStats aggregates the legacy dashboard transactions.
type TransactionStats struct {
	TotalTransactions int64 `json:"total_transactions"`
	TotalAmountPaise  int64 `json:"total_amount_paise"`
	SuccessCount      int64 `json:"success_count"`
	FailedCount       int64 `json:"failed_count"`
	FlaggedCount      int64 `json:"flagged_count"`
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
