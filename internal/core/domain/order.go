package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxNotesBytes bounds the opaque notes blob accepted on order create.
const MaxNotesBytes = 4096

// SupportedCurrencies are the ISO codes orders may be denominated in.
var SupportedCurrencies = []string{"INR", "USD", "EUR"}

// ValidCurrency reports whether c is a supported ISO currency code.
func ValidCurrency(c string) bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusAttempted OrderStatus = "attempted"
	OrderStatusPaid      OrderStatus = "paid"
)

// Order represents a merchant's declared intent to collect an amount.
// Amounts are integer minor units (paise for INR).
type Order struct {
	ID          uuid.UUID   `json:"id"`
	MerchantID  uuid.UUID   `json:"merchant_id"`
	OrderRef    string      `json:"order_ref"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Receipt     *string     `json:"receipt,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	Status      OrderStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	AutoCapture bool        `json:"auto_capture"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsPayable returns true if the order can still accept payment attempts.
func (o *Order) IsPayable() bool {
	return o.Status == OrderStatusCreated || o.Status == OrderStatusAttempted
}

// IsExpired returns true if the order passed its expiry without being paid.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status != OrderStatusPaid && now.After(o.ExpiresAt)
}
