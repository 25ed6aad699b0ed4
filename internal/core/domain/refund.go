package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus represents the outcome of a refund. Refunds are single-shot:
// they are created directly in a terminal state.
type RefundStatus string

const (
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

// Refund represents a reversal of a captured payment, in whole or in part.
// The invariant sum(processed refunds) <= payment.amount is enforced under a
// row lock on the payment at creation time.
type Refund struct {
	ID             uuid.UUID    `json:"id"`
	PaymentID      uuid.UUID    `json:"payment_id"`
	RefundRef      string       `json:"refund_ref"`
	Amount         int64        `json:"amount"`
	Reason         *string      `json:"reason,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
	Status         RefundStatus `json:"status"`
	IdempotencyKey *string      `json:"-"`
	CreatedAt      time.Time    `json:"created_at"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
}
