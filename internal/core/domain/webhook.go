package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Webhook event names emitted on state transitions.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
	EventRefundProcessed = "refund.processed"
)

// WebhookStatus represents the delivery state of an outbox event.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusDelivered WebhookStatus = "delivered"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookEvent is a durable outbox row. It is appended in the same database
// transaction as the state change it announces and drained by the dispatcher.
type WebhookEvent struct {
	ID               int64           `json:"id"`
	MerchantID       uuid.UUID       `json:"merchant_id"`
	Event            string          `json:"event"`
	Payload          json.RawMessage `json:"payload"`
	Status           WebhookStatus   `json:"status"`
	Attempts         int             `json:"attempts"`
	NextAttemptAt    time.Time       `json:"next_attempt_at"`
	LockedAt         *time.Time      `json:"-"`
	LastResponseCode *int            `json:"last_response_code,omitempty"`
	LastResponseBody *string         `json:"last_response_body,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
}

// IsTerminal returns true once no further delivery attempts will be made.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusDelivered || e.Status == WebhookStatusFailed
}

// WebhookBackoff returns the retry delay after the given attempt count:
// min(600, 2^attempts) seconds.
func WebhookBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	secs := int64(600)
	if attempts < 10 {
		if v := int64(1) << uint(attempts); v < secs {
			secs = v
		}
	}
	return time.Duration(secs) * time.Second
}

// WebhookLog records a single delivery attempt, successful or not.
// Response bodies are truncated before storage.
type WebhookLog struct {
	ID             uuid.UUID `json:"id"`
	MerchantID     uuid.UUID `json:"merchant_id"`
	EventID        int64     `json:"event_id"`
	Event          string    `json:"event"`
	TargetURL      string    `json:"target_url"`
	ResponseStatus *int      `json:"response_status,omitempty"`
	ResponseBody   string    `json:"response_body"`
	Success        bool      `json:"success"`
	CreatedAt      time.Time `json:"created_at"`
}

// MaxLoggedResponseBytes bounds how much of a webhook response is stored.
const MaxLoggedResponseBytes = 500

// TruncateResponseBody clips a webhook response body for storage.
func TruncateResponseBody(body string) string {
	if len(body) > MaxLoggedResponseBytes {
		return body[:MaxLoggedResponseBytes]
	}
	return body
}
