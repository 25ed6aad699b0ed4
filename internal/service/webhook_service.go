package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultWebhookLogLimit = 50

// webhookService appends outbox rows inside the caller's transaction. Events
// are enqueued only for merchants with a webhook URL; the dispatcher drains
// them afterwards, so a crash between commit and delivery loses nothing.
type webhookService struct {
	webhookRepo ports.WebhookRepository
	logRepo     ports.WebhookLogRepository
	log         zerolog.Logger
}

func NewWebhookService(
	webhookRepo ports.WebhookRepository,
	logRepo ports.WebhookLogRepository,
	log zerolog.Logger,
) ports.WebhookService {
	return &webhookService{
		webhookRepo: webhookRepo,
		logRepo:     logRepo,
		log:         log,
	}
}

func (s *webhookService) EnqueuePaymentCaptured(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, payment *domain.Payment) error {
	return s.enqueuePaymentEvent(ctx, tx, merchant, domain.EventPaymentCaptured, payment)
}

func (s *webhookService) EnqueuePaymentFailed(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, payment *domain.Payment) error {
	return s.enqueuePaymentEvent(ctx, tx, merchant, domain.EventPaymentFailed, payment)
}

func (s *webhookService) enqueuePaymentEvent(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, event string, payment *domain.Payment) error {
	if merchant == nil || !merchant.HasWebhook() {
		return nil
	}
	payload := map[string]interface{}{
		"payment_ref": payment.PaymentRef,
		"order_ref":   payment.OrderRef,
		"amount":      payment.Amount,
		"currency":    payment.Currency,
		"method":      payment.Method,
		"status":      payment.Status,
	}
	return s.enqueue(ctx, tx, merchant.ID, event, payload)
}

func (s *webhookService) EnqueueOrderPaid(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, order *domain.Order) error {
	if merchant == nil || !merchant.HasWebhook() {
		return nil
	}
	payload := map[string]interface{}{
		"order_ref": order.OrderRef,
		"amount":    order.Amount,
		"currency":  order.Currency,
		"status":    domain.OrderStatusPaid,
	}
	return s.enqueue(ctx, tx, merchant.ID, domain.EventOrderPaid, payload)
}

func (s *webhookService) EnqueueRefundProcessed(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant, refund *domain.Refund, payment *domain.Payment) error {
	if merchant == nil || !merchant.HasWebhook() {
		return nil
	}
	payload := map[string]interface{}{
		"refund_ref":  refund.RefundRef,
		"payment_ref": payment.PaymentRef,
		"amount":      refund.Amount,
		"status":      refund.Status,
	}
	return s.enqueue(ctx, tx, merchant.ID, domain.EventRefundProcessed, payload)
}

func (s *webhookService) enqueue(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, event string, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal webhook payload: %w", err))
	}
	now := time.Now().UTC()
	row := &domain.WebhookEvent{
		MerchantID:    merchantID,
		Event:         event,
		Payload:       raw,
		Status:        domain.WebhookStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := s.webhookRepo.Enqueue(ctx, tx, row); err != nil {
		return apperror.InternalError(fmt.Errorf("enqueue webhook event: %w", err))
	}
	s.log.Debug().
		Str("merchant_id", merchantID.String()).
		Str("event", event).
		Msg("webhook event enqueued")
	return nil
}

func (s *webhookService) ListLogs(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookLog, error) {
	if limit <= 0 || limit > defaultWebhookLogLimit {
		limit = defaultWebhookLogLimit
	}
	logs, err := s.logRepo.ListByMerchant(ctx, merchantID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list webhook logs: %w", err))
	}
	return logs, nil
}
