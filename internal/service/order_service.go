package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL = 24 * time.Hour

	// idempotencyReserveTTL bounds how long an in-flight claim on a key can
	// outlive its request. It only has to cover the request timeout.
	idempotencyReserveTTL = 30 * time.Second
)

// cachedOrderCreate is the redis fast-path value for an idempotent order
// create: the original request fingerprint plus the stored order.
type cachedOrderCreate struct {
	RequestHash string        `json:"request_hash"`
	Order       *domain.Order `json:"order"`
}

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orderRepo   ports.OrderRepository
	paymentRepo ports.PaymentRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	refSvc      ports.ReferenceService
	transactor  ports.DBTransactor
	checkoutURL string
	orderTTL    time.Duration
	log         zerolog.Logger
}

// NewOrderService creates a new OrderServiceImpl. checkoutURL is the hosted
// checkout base (FRONTEND_URL); orderTTL is how long a new order stays payable.
func NewOrderService(
	orderRepo ports.OrderRepository,
	paymentRepo ports.PaymentRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	refSvc ports.ReferenceService,
	transactor ports.DBTransactor,
	checkoutURL string,
	orderTTL time.Duration,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		refSvc:      refSvc,
		transactor:  transactor,
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		orderTTL:    orderTTL,
		log:         log,
	}
}

// Create persists a new order, or replays the stored one when the
// idempotency key was seen before. A reused key with a different request
// body is a conflict, never a silent replay.
func (s *OrderServiceImpl) Create(ctx context.Context, req ports.CreateOrderRequest) (*domain.Order, bool, error) {
	if req.Amount <= 0 {
		return nil, false, apperror.Validation("amount must be a positive integer in minor units")
	}
	currency := strings.ToUpper(req.Currency)
	if !domain.ValidCurrency(currency) {
		return nil, false, apperror.Validation(fmt.Sprintf("currency must be one of %s", strings.Join(domain.SupportedCurrencies, ", ")))
	}
	if req.Notes != nil && len(*req.Notes) > domain.MaxNotesBytes {
		return nil, false, apperror.Validation(fmt.Sprintf("notes exceeds %d bytes", domain.MaxNotesBytes))
	}

	// Layer 1: redis idempotency check
	cached, err := s.idempCache.Get(ctx, req.MerchantID, req.IdempotencyKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return s.replayCached(cached, req.RequestHash)
	}

	// Layer 2: durable idempotency check
	record, err := s.idempRepo.Get(ctx, req.MerchantID, req.IdempotencyKey)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if record != nil {
		if record.RequestHash != req.RequestHash {
			return nil, false, apperror.Conflict("idempotency key reused with a different request body")
		}
		order, err := s.orderRepo.GetByID(ctx, record.OrderID)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("load replayed order: %w", err))
		}
		if order == nil {
			return nil, false, apperror.InternalError(fmt.Errorf("idempotency record points at missing order %s", record.OrderID))
		}
		return order, true, nil
	}

	// Claim the key before writing anything. Of two concurrent duplicates,
	// the loser backs off with a conflict instead of racing the insert into
	// a unique-key violation. When redis is down the unique key still holds
	// the invariant, just with an uglier failure for the loser.
	reserved, err := s.idempCache.Reserve(ctx, req.MerchantID, req.IdempotencyKey, idempotencyReserveTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("redis idempotency reserve failed, relying on the unique key")
		reserved = false
	} else if !reserved {
		return nil, false, apperror.Conflict("a request with this idempotency key is already being processed")
	}
	committed := false
	defer func() {
		if reserved && !committed {
			// Release the claim so an immediate retry does not have to wait
			// out the reservation TTL.
			if err := s.idempCache.Unreserve(ctx, req.MerchantID, req.IdempotencyKey); err != nil {
				s.log.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("failed to release idempotency claim")
			}
		}
	}()

	orderRef, err := s.refSvc.NewOrderRef()
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("generate order ref: %w", err))
	}

	autoCapture := true
	if req.AutoCapture != nil {
		autoCapture = *req.AutoCapture
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:          uuid.New(),
		MerchantID:  req.MerchantID,
		OrderRef:    orderRef,
		Amount:      req.Amount,
		Currency:    currency,
		Receipt:     req.Receipt,
		Notes:       req.Notes,
		Status:      domain.OrderStatusCreated,
		AutoCapture: autoCapture,
		ExpiresAt:   now.Add(s.orderTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	record = &domain.IdempotencyRecord{
		MerchantID:  req.MerchantID,
		Key:         req.IdempotencyKey,
		RequestHash: req.RequestHash,
		OrderID:     order.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(idempotencyTTL),
	}
	err = runTxWithRetry(s.log, "create order", func() error {
		return s.createOrderTx(ctx, order, record)
	})
	if err != nil {
		return nil, false, err
	}
	committed = true

	// Post-process: cache in redis (best-effort)
	if payload, err := json.Marshal(cachedOrderCreate{RequestHash: req.RequestHash, Order: order}); err == nil {
		if err := s.idempCache.Set(ctx, req.MerchantID, req.IdempotencyKey, payload, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", req.IdempotencyKey).Msg("failed to cache idempotent order create")
		}
	}

	s.log.Info().
		Str("order_ref", order.OrderRef).
		Str("merchant_id", req.MerchantID.String()).
		Int64("amount", order.Amount).
		Str("currency", order.Currency).
		Msg("order created")

	return order, false, nil
}

// createOrderTx inserts the order and its idempotency record atomically.
func (s *OrderServiceImpl) createOrderTx(ctx context.Context, order *domain.Order, record *domain.IdempotencyRecord) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.orderRepo.Create(ctx, dbTx, order); err != nil {
		return apperror.InternalError(fmt.Errorf("create order: %w", err))
	}
	if err := s.idempRepo.Create(ctx, dbTx, record); err != nil {
		return apperror.InternalError(fmt.Errorf("save idempotency record: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *OrderServiceImpl) replayCached(data []byte, requestHash string) (*domain.Order, bool, error) {
	var entry cachedOrderCreate
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("unmarshal cached order: %w", err))
	}
	if entry.RequestHash != requestHash {
		return nil, false, apperror.Conflict("idempotency key reused with a different request body")
	}
	return entry.Order, true, nil
}

// Get returns one of the merchant's orders by public reference. Orders of
// other merchants are indistinguishable from missing ones.
func (s *OrderServiceImpl) Get(ctx context.Context, merchantID uuid.UUID, orderRef string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find order: %w", err))
	}
	if order == nil || order.MerchantID != merchantID {
		return nil, apperror.NotFound("order")
	}
	return order, nil
}

// List returns the merchant's orders, newest first.
func (s *OrderServiceImpl) List(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error) {
	orders, err := s.orderRepo.List(ctx, merchantID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

// ListPayments returns every payment attempt recorded against an order.
func (s *OrderServiceImpl) ListPayments(ctx context.Context, merchantID uuid.UUID, orderRef string) ([]domain.Payment, error) {
	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find order: %w", err))
	}
	if order == nil || order.MerchantID != merchantID {
		return nil, apperror.NotFound("order")
	}

	payments, err := s.paymentRepo.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payments: %w", err))
	}
	return payments, nil
}

// CheckoutURL builds the hosted checkout link customers are sent to.
func (s *OrderServiceImpl) CheckoutURL(orderRef string) string {
	return s.checkoutURL + "/pay/" + orderRef
}
