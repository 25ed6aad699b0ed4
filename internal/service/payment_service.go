package service

import (
	"context"
	"fmt"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	orderRepo    ports.OrderRepository
	paymentRepo  ports.PaymentRepository
	refundRepo   ports.RefundRepository
	merchantRepo ports.MerchantRepository
	webhookSvc   ports.WebhookService
	fraudEngine  *FraudEngine
	authorizer   ports.Authorizer
	encSvc       ports.EncryptionService
	refSvc       ports.ReferenceService
	auditSvc     ports.AuditService
	transactor   ports.DBTransactor
	log          zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	orderRepo ports.OrderRepository,
	paymentRepo ports.PaymentRepository,
	refundRepo ports.RefundRepository,
	merchantRepo ports.MerchantRepository,
	webhookSvc ports.WebhookService,
	fraudEngine *FraudEngine,
	authorizer ports.Authorizer,
	encSvc ports.EncryptionService,
	refSvc ports.ReferenceService,
	auditSvc ports.AuditService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		refundRepo:   refundRepo,
		merchantRepo: merchantRepo,
		webhookSvc:   webhookSvc,
		fraudEngine:  fraudEngine,
		authorizer:   authorizer,
		encSvc:       encSvc,
		refSvc:       refSvc,
		auditSvc:     auditSvc,
		transactor:   transactor,
		log:          log,
	}
}

// SubmitPayment runs one hosted-checkout attempt against an order: fraud
// evaluation, simulated authorization, then a single transaction that locks
// the order, inserts the payment, advances the order and appends outbox rows.
// The authorization verdict is obtained before the transaction opens; no lock
// is ever held across an outbound call.
func (s *PaymentServiceImpl) SubmitPayment(ctx context.Context, req ports.SubmitPaymentRequest) (*domain.Payment, error) {
	if !domain.ValidPaymentMethod(req.Method) {
		return nil, apperror.Validation("unsupported payment method")
	}
	if req.Method == domain.PaymentMethodUPI && req.VPA == "" {
		return nil, apperror.Validation("vpa is required for upi payments")
	}
	if req.Method == domain.PaymentMethodCard && req.CardNumber == "" {
		return nil, apperror.Validation("card_number is required for card payments")
	}

	order, err := s.orderRepo.GetByRef(ctx, req.OrderRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return nil, apperror.NotFound("order")
	}
	if req.MerchantID != uuid.Nil && order.MerchantID != req.MerchantID {
		return nil, apperror.NotFound("order")
	}

	now := time.Now().UTC()
	if order.Status == domain.OrderStatusPaid {
		return nil, apperror.Conflict("order is already paid")
	}
	if order.IsExpired(now) {
		return nil, apperror.Conflict("order has expired")
	}

	merchant, err := s.merchantRepo.GetByID(ctx, order.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.InternalError(fmt.Errorf("order %s references missing merchant %s", order.OrderRef, order.MerchantID))
	}

	payerKey := payerIdentity(req, order)

	// Fraud evaluation decorates the payment; a history read failure must not
	// block the attempt.
	history := domain.FraudHistory{}
	if h, err := s.paymentRepo.History(ctx, payerKey, now.Add(-domain.FraudWindow)); err != nil {
		s.log.Warn().Err(err).Str("order_ref", order.OrderRef).Msg("fraud history read failed, evaluating with empty history")
	} else if h != nil {
		history = *h
	}
	fraudHits := s.fraudEngine.Evaluate(domain.FraudAttempt{
		PayerKey: payerKey,
		Amount:   order.Amount,
		Method:   req.Method,
		VPA:      req.VPA,
		At:       now,
	}, history)

	paymentRef, err := s.refSvc.NewPaymentRef()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate payment ref: %w", err))
	}

	payment := &domain.Payment{
		ID:         uuid.New(),
		OrderID:    order.ID,
		OrderRef:   order.OrderRef,
		PaymentRef: paymentRef,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Method:     req.Method,
		Status:     domain.PaymentStatusCreated,
		PayerKey:   payerKey,
		IsFlagged:  len(fraudHits) > 0,
		FraudRules: fraudHits,
		CreatedAt:  now,
	}

	if err := s.sealPayerFields(payment, req); err != nil {
		return nil, err
	}
	if req.Method == domain.PaymentMethodCard {
		last4 := domain.CardLastFour(req.CardNumber)
		if last4 == "" {
			return nil, apperror.Validation("card_number is malformed")
		}
		network := domain.DetectCardNetwork(req.CardNumber)
		payment.CardLast4 = &last4
		payment.CardNetwork = &network
		if req.CardName != "" {
			name := req.CardName
			payment.CardName = &name
		}
	}

	// Authorization happens before the transaction opens.
	verdict := s.authorizer.AuthorizePayment(ctx, payment)

	err = runTxWithRetry(s.log, "submit payment", func() error {
		return s.submitPaymentTx(ctx, req.OrderRef, merchant, payment, verdict)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("payment_ref", payment.PaymentRef).
		Str("order_ref", order.OrderRef).
		Str("status", string(payment.Status)).
		Bool("flagged", payment.IsFlagged).
		Int64("amount", payment.Amount).
		Msg("payment attempt recorded")

	return payment, nil
}

// submitPaymentTx is the transactional tail of SubmitPayment: lock the order,
// re-check its state, write the payment with the pre-obtained verdict, advance
// the order and append outbox rows. Every value it writes is re-derived from
// the locked row, so a conflict rerun starts clean.
func (s *PaymentServiceImpl) submitPaymentTx(ctx context.Context, orderRef string, merchant *domain.Merchant, payment *domain.Payment, verdict ports.AuthorizationResult) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.orderRepo.GetByRefForUpdate(ctx, dbTx, orderRef)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if locked == nil {
		return apperror.NotFound("order")
	}
	if locked.Status == domain.OrderStatusPaid {
		return apperror.Conflict("order is already paid")
	}
	if locked.IsExpired(time.Now().UTC()) {
		return apperror.Conflict("order has expired")
	}

	live, err := s.paymentRepo.ExistsLiveForOrder(ctx, dbTx, locked.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check live payments: %w", err))
	}
	if live {
		return apperror.Conflict("order already has an active payment")
	}

	orderStatus := domain.OrderStatusAttempted
	if verdict.Approved {
		payment.Status = domain.PaymentStatusAuthorized
		if locked.AutoCapture {
			captured := time.Now().UTC()
			payment.Status = domain.PaymentStatusCaptured
			payment.CapturedAt = &captured
			orderStatus = domain.OrderStatusPaid
		}
	} else {
		payment.Status = domain.PaymentStatusFailed
		if verdict.ErrorCode != "" {
			code := verdict.ErrorCode
			payment.ErrorCode = &code
		}
		if verdict.ErrorReason != "" {
			reason := verdict.ErrorReason
			payment.ErrorReason = &reason
		}
	}

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}
	if err := s.orderRepo.RecordAttempt(ctx, dbTx, locked.ID, orderStatus); err != nil {
		return apperror.InternalError(fmt.Errorf("record attempt: %w", err))
	}
	locked.Status = orderStatus
	locked.Attempts++

	switch payment.Status {
	case domain.PaymentStatusCaptured:
		if err := s.webhookSvc.EnqueuePaymentCaptured(ctx, dbTx, merchant, payment); err != nil {
			return apperror.InternalError(fmt.Errorf("enqueue payment.captured: %w", err))
		}
		if err := s.webhookSvc.EnqueueOrderPaid(ctx, dbTx, merchant, locked); err != nil {
			return apperror.InternalError(fmt.Errorf("enqueue order.paid: %w", err))
		}
	case domain.PaymentStatusFailed:
		if err := s.webhookSvc.EnqueuePaymentFailed(ctx, dbTx, merchant, payment); err != nil {
			return apperror.InternalError(fmt.Errorf("enqueue payment.failed: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// payerIdentity picks the stable fraud-history key for an attempt: the most
// specific contact field present, else the order's merchant scope.
func payerIdentity(req ports.SubmitPaymentRequest, order *domain.Order) string {
	switch {
	case req.VPA != "":
		return "vpa:" + req.VPA
	case req.Email != "":
		return "email:" + req.Email
	case req.Contact != "":
		return "contact:" + req.Contact
	}
	return "merchant:" + order.MerchantID.String()
}

// sealPayerFields encrypts contact details at rest. Card numbers are never
// sealed or stored.
func (s *PaymentServiceImpl) sealPayerFields(payment *domain.Payment, req ports.SubmitPaymentRequest) error {
	var err error
	if req.VPA != "" {
		if payment.VPASealed, err = s.encSvc.Encrypt(req.VPA); err != nil {
			return apperror.InternalError(fmt.Errorf("seal vpa: %w", err))
		}
	}
	if req.Email != "" {
		if payment.EmailSealed, err = s.encSvc.Encrypt(req.Email); err != nil {
			return apperror.InternalError(fmt.Errorf("seal email: %w", err))
		}
	}
	if req.Contact != "" {
		if payment.ContactSealed, err = s.encSvc.Encrypt(req.Contact); err != nil {
			return apperror.InternalError(fmt.Errorf("seal contact: %w", err))
		}
	}
	return nil
}

// GetPayment returns one of the merchant's payments by public reference.
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, error) {
	payment, _, err := s.ownedPayment(ctx, merchantID, paymentRef)
	return payment, err
}

// ownedPayment resolves a payment and enforces merchant ownership through the
// parent order. Foreign payments read as missing.
func (s *PaymentServiceImpl) ownedPayment(ctx context.Context, merchantID uuid.UUID, paymentRef string) (*domain.Payment, *domain.Order, error) {
	payment, err := s.paymentRepo.GetByRef(ctx, paymentRef)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("find payment: %w", err))
	}
	if payment == nil {
		return nil, nil, apperror.NotFound("payment")
	}
	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("find order: %w", err))
	}
	if order == nil || order.MerchantID != merchantID {
		return nil, nil, apperror.NotFound("payment")
	}
	return payment, order, nil
}

// Capture finalizes an authorized payment. Capturing an already-captured
// payment is a no-op returning the unchanged resource; PayFlow captures are
// full-amount only.
func (s *PaymentServiceImpl) Capture(ctx context.Context, merchantID uuid.UUID, paymentRef string, amount int64) (*domain.Payment, error) {
	payment, order, err := s.ownedPayment(ctx, merchantID, paymentRef)
	if err != nil {
		return nil, err
	}
	if amount != 0 && amount != payment.Amount {
		return nil, apperror.Validation("partial capture is not supported; omit amount or pass the full payment amount")
	}

	var (
		captured *domain.Payment
		noop     bool
	)
	err = runTxWithRetry(s.log, "capture payment", func() error {
		var txErr error
		captured, noop, txErr = s.captureTx(ctx, merchantID, paymentRef, order)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return captured, nil
	}

	s.auditSvc.Log(ctx, merchantID.String(), domain.AuditActionCapture, "payment", captured.PaymentRef, "", "")

	s.log.Info().
		Str("payment_ref", captured.PaymentRef).
		Int64("amount", captured.Amount).
		Msg("payment captured")

	return captured, nil
}

// captureTx locks the payment and performs the authorized→captured step
// together with the order's paid transition. noop reports a payment that was
// already captured, returned unchanged.
func (s *PaymentServiceImpl) captureTx(ctx context.Context, merchantID uuid.UUID, paymentRef string, order *domain.Order) (p *domain.Payment, noop bool, err error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.paymentRepo.GetByRefForUpdate(ctx, dbTx, paymentRef)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if locked == nil {
		return nil, false, apperror.NotFound("payment")
	}

	if locked.Status == domain.PaymentStatusCaptured {
		return locked, true, nil
	}
	if locked.Status != domain.PaymentStatusAuthorized {
		return nil, false, apperror.Conflict(fmt.Sprintf("cannot capture payment in status %q", locked.Status))
	}

	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}

	now := time.Now().UTC()
	if err := s.paymentRepo.UpdateStatus(ctx, dbTx, locked.ID, domain.PaymentStatusCaptured, &now); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("capture payment: %w", err))
	}
	if err := s.orderRepo.SetStatus(ctx, dbTx, order.ID, domain.OrderStatusPaid); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("mark order paid: %w", err))
	}
	locked.Status = domain.PaymentStatusCaptured
	locked.CapturedAt = &now
	order.Status = domain.OrderStatusPaid

	if merchant != nil {
		if err := s.webhookSvc.EnqueuePaymentCaptured(ctx, dbTx, merchant, locked); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("enqueue payment.captured: %w", err))
		}
		if err := s.webhookSvc.EnqueueOrderPaid(ctx, dbTx, merchant, order); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("enqueue order.paid: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return locked, false, nil
}

// Refund pulls money back from a captured payment, in whole or in part. The
// refundable-sum invariant is re-derived under the payment row lock, so
// concurrent refunds cannot oversubscribe the payment.
func (s *PaymentServiceImpl) Refund(ctx context.Context, req ports.RefundRequest) (*domain.Refund, error) {
	if req.Amount < 0 {
		return nil, apperror.Validation("amount must not be negative")
	}

	payment, _, err := s.ownedPayment(ctx, req.MerchantID, req.PaymentRef)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.refundRepo.GetByIdempotencyKey(ctx, payment.ID, *req.IdempotencyKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
		}
		if existing != nil {
			return existing, nil
		}
	}

	merchant, err := s.merchantRepo.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}

	refundRef, err := s.refSvc.NewRefundRef()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate refund ref: %w", err))
	}

	now := time.Now().UTC()
	refund := &domain.Refund{
		ID:             uuid.New(),
		PaymentID:      payment.ID,
		RefundRef:      refundRef,
		Reason:         req.Reason,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}

	// Processor verdict first; the transaction never spans an outbound call.
	verdict := s.authorizer.AuthorizeRefund(ctx, refund)

	err = runTxWithRetry(s.log, "refund payment", func() error {
		return s.refundTx(ctx, req, merchant, refund, verdict, now)
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, req.MerchantID.String(), domain.AuditActionRefund, "refund", refund.RefundRef, "", "")

	s.log.Info().
		Str("refund_ref", refund.RefundRef).
		Str("payment_ref", req.PaymentRef).
		Str("status", string(refund.Status)).
		Int64("amount", refund.Amount).
		Msg("refund recorded")

	return refund, nil
}

// refundTx locks the payment, re-derives the refundable balance and writes
// the refund row plus the payment's refund columns. The amount and status on
// refund are reassigned on every run.
func (s *PaymentServiceImpl) refundTx(ctx context.Context, req ports.RefundRequest, merchant *domain.Merchant, refund *domain.Refund, verdict ports.AuthorizationResult, now time.Time) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.paymentRepo.GetByRefForUpdate(ctx, dbTx, req.PaymentRef)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if locked == nil {
		return apperror.NotFound("payment")
	}
	if !locked.IsRefundable() {
		return apperror.Conflict(fmt.Sprintf("cannot refund payment in status %q", locked.Status))
	}

	refunded, err := s.refundRepo.SumProcessed(ctx, dbTx, locked.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum refunds: %w", err))
	}

	amount := req.Amount
	if amount == 0 {
		amount = locked.Amount - refunded
	}
	if amount <= 0 || refunded+amount > locked.Amount {
		return apperror.Conflict(fmt.Sprintf("refund amount %d exceeds refundable amount %d", amount, locked.Amount-refunded))
	}
	refund.Amount = amount

	if verdict.Approved {
		refund.Status = domain.RefundStatusProcessed
		refund.ProcessedAt = &now
	} else {
		refund.Status = domain.RefundStatusFailed
	}

	if err := s.refundRepo.Create(ctx, dbTx, refund); err != nil {
		return apperror.InternalError(fmt.Errorf("create refund: %w", err))
	}

	if refund.Status == domain.RefundStatusProcessed {
		newRefunded := refunded + amount
		status := domain.PaymentStatusPartiallyRefunded
		if newRefunded >= locked.Amount {
			status = domain.PaymentStatusRefunded
		}
		if err := s.paymentRepo.ApplyRefund(ctx, dbTx, locked.ID, newRefunded, status); err != nil {
			return apperror.InternalError(fmt.Errorf("apply refund: %w", err))
		}
		locked.AmountRefunded = newRefunded
		locked.Status = status

		if merchant != nil {
			if err := s.webhookSvc.EnqueueRefundProcessed(ctx, dbTx, merchant, refund, locked); err != nil {
				return apperror.InternalError(fmt.Errorf("enqueue refund.processed: %w", err))
			}
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// ListRefunds returns every refund recorded against one of the merchant's
// payments.
func (s *PaymentServiceImpl) ListRefunds(ctx context.Context, merchantID uuid.UUID, paymentRef string) ([]domain.Refund, error) {
	payment, _, err := s.ownedPayment(ctx, merchantID, paymentRef)
	if err != nil {
		return nil, err
	}
	refunds, err := s.refundRepo.ListByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list refunds: %w", err))
	}
	return refunds, nil
}

// CheckoutOrder resolves an order and its merchant for the hosted checkout
// page. No credentials: order refs are unguessable capability URLs.
func (s *PaymentServiceImpl) CheckoutOrder(ctx context.Context, orderRef string) (*domain.Order, *domain.Merchant, error) {
	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return nil, nil, apperror.NotFound("order")
	}
	merchant, err := s.merchantRepo.GetByID(ctx, order.MerchantID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, nil, apperror.NotFound("order")
	}
	return order, merchant, nil
}
