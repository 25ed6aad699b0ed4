package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusCreated           PaymentStatus = "created"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusCaptured          PaymentStatus = "captured"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// PaymentMethod represents the instrument used for a payment.
type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
)

// ValidPaymentMethod reports whether m is a supported method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCard, PaymentMethodNetbanking, PaymentMethodWallet:
		return true
	}
	return false
}

// Payment represents one customer attempt to satisfy an order.
// Contact fields (VPA, email, phone) are sealed at rest; card numbers are
// never stored, only the last four digits, the network and the holder name.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	OrderID        uuid.UUID     `json:"order_id"`
	OrderRef       string        `json:"order_ref"`
	PaymentRef     string        `json:"payment_ref"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	Method         PaymentMethod `json:"method"`
	Status         PaymentStatus `json:"status"`
	PayerKey       string        `json:"-"` // stable payer identity for fraud history
	VPASealed      string        `json:"-"`
	EmailSealed    string        `json:"-"`
	ContactSealed  string        `json:"-"`
	CardLast4      *string       `json:"card_last4,omitempty"`
	CardNetwork    *string       `json:"card_network,omitempty"`
	CardName       *string       `json:"card_name,omitempty"`
	AmountRefunded int64         `json:"amount_refunded"`
	IsFlagged      bool          `json:"is_flagged"`
	FraudRules     []string      `json:"fraud_rules,omitempty"`
	ErrorCode      *string       `json:"error_code,omitempty"`
	ErrorReason    *string       `json:"error_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	CapturedAt     *time.Time    `json:"captured_at,omitempty"`
}

// IsLive returns true unless the payment failed. An order with a live payment
// rejects further attempts.
func (p *Payment) IsLive() bool {
	return p.Status != PaymentStatusFailed
}

// IsRefundable returns true if more money can be pulled back.
func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusCaptured || p.Status == PaymentStatusPartiallyRefunded
}

// RemainingRefundable returns how much of the payment is still refundable.
func (p *Payment) RemainingRefundable() int64 {
	return p.Amount - p.AmountRefunded
}

// CardLastFour extracts the last four digits of a card number after stripping
// spaces and dashes. Returns "" when fewer than four digits remain.
func CardLastFour(cardNumber string) string {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(cardNumber)
	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

// DetectCardNetwork maps the first digit of a card number to its network.
func DetectCardNetwork(cardNumber string) string {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(cardNumber)
	if digits == "" {
		return "Unknown"
	}
	switch digits[0] {
	case '4':
		return "Visa"
	case '5':
		return "Mastercard"
	case '6':
		return "RuPay"
	case '3':
		return "Amex"
	}
	return "Unknown"
}
