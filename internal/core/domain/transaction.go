package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a legacy dashboard
// transaction. These are user-scoped and distinct from gateway payments.
type TransactionStatus string

const (
	TransactionStatusSuccess  TransactionStatus = "success"
	TransactionStatusFailed   TransactionStatus = "failed"
	TransactionStatusRefunded TransactionStatus = "refunded"
)

// Transaction is a legacy dashboard money movement owned by a user. The HTTP
// boundary accepts rupee floats; rows always store integer paise.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	AmountPaise    int64             `json:"amount_paise"`
	PaymentMethod  PaymentMethod     `json:"payment_method"`
	Status         TransactionStatus `json:"status"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
	IsFlagged      bool              `json:"is_flagged"`
	FraudRules     []string          `json:"fraud_rules,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// IsRefundable returns true if this transaction can still be refunded.
func (t *Transaction) IsRefundable() bool {
	return t.Status == TransactionStatusSuccess
}

// RupeesToPaise converts a rupee amount from the legacy dashboard API into
// integer paise. Conversion happens exactly once, at this boundary.
func RupeesToPaise(rupees float64) int64 {
	return int64(rupees*100 + 0.5)
}

// PaiseToRupees converts stored paise back to the rupee floats the legacy
// dashboard API exposes.
func PaiseToRupees(paise int64) float64 {
	return float64(paise) / 100
}
