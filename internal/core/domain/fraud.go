package domain

import "time"

// Fraud rule names stored on flagged payments.
const (
	FraudRuleHighValue       = "high_value"
	FraudRuleDuplicateAmount = "duplicate_amount"
	FraudRuleHighFrequency   = "high_frequency"
	FraudRuleInvalidVPA      = "invalid_vpa"
	FraudRuleVelocity        = "velocity"
)

// Fraud rule thresholds. Amounts are minor units; the window is trailing.
const (
	FraudHighValueThreshold = 50_000
	FraudVelocityThreshold  = 200_000
	FraudFrequencyThreshold = 5
	FraudWindow             = 60 * time.Second
)

// FraudAttempt is the payment attempt under evaluation.
type FraudAttempt struct {
	PayerKey string // stable identity of the paying party
	Amount   int64
	Method   PaymentMethod
	VPA      string
	At       time.Time
}

// FraudHistory summarizes the payer's activity inside the trailing window.
type FraudHistory struct {
	Count       int
	TotalAmount int64
	Amounts     []int64
}

// HasAmount reports whether an earlier payment in the window used the amount.
func (h FraudHistory) HasAmount(amount int64) bool {
	for _, a := range h.Amounts {
		if a == amount {
			return true
		}
	}
	return false
}
