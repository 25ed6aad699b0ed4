package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"payflow/config"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
)

// Simulated processor decline codes.
const (
	declineCodePayment = "PAYMENT_DECLINED"
	declineCodeRefund  = "REFUND_DECLINED"

	declineReasonPayment = "Payment declined by issuing bank"
	declineReasonRefund  = "Refund declined by processor"
)

// SimulatedAuthorizer implements ports.Authorizer by rolling configured
// success probabilities. It stands in for an upstream processor; swapping it
// for a real one only touches the constructor wiring.
type SimulatedAuthorizer struct {
	checkoutRate    float64
	transactionRate float64
	refundRate      float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedAuthorizer creates an authorizer from simulator config. A
// non-zero seed pins the outcome sequence, which tests rely on.
func NewSimulatedAuthorizer(cfg config.SimulatorConfig) *SimulatedAuthorizer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedAuthorizer{
		checkoutRate:    cfg.CheckoutSuccessRate,
		transactionRate: cfg.TransactionSuccessRate,
		refundRate:      cfg.RefundSuccessRate,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

func (a *SimulatedAuthorizer) roll(rate float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64() < rate
}

// AuthorizePayment simulates the processor verdict for a checkout payment.
func (a *SimulatedAuthorizer) AuthorizePayment(_ context.Context, _ *domain.Payment) ports.AuthorizationResult {
	if a.roll(a.checkoutRate) {
		return ports.AuthorizationResult{Approved: true}
	}
	return ports.AuthorizationResult{
		Approved:    false,
		ErrorCode:   declineCodePayment,
		ErrorReason: declineReasonPayment,
	}
}

// AuthorizeRefund simulates the processor verdict for a refund.
func (a *SimulatedAuthorizer) AuthorizeRefund(_ context.Context, _ *domain.Refund) ports.AuthorizationResult {
	if a.roll(a.refundRate) {
		return ports.AuthorizationResult{Approved: true}
	}
	return ports.AuthorizationResult{
		Approved:    false,
		ErrorCode:   declineCodeRefund,
		ErrorReason: declineReasonRefund,
	}
}

// AuthorizeTransaction simulates the processor verdict for a legacy
// dashboard transaction.
func (a *SimulatedAuthorizer) AuthorizeTransaction(_ context.Context, _ *domain.Transaction) ports.AuthorizationResult {
	if a.roll(a.transactionRate) {
		return ports.AuthorizationResult{Approved: true}
	}
	return ports.AuthorizationResult{
		Approved:    false,
		ErrorCode:   declineCodePayment,
		ErrorReason: declineReasonPayment,
	}
}
