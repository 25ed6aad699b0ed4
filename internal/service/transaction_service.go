package service

import (
	"context"
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
	transactionCacheTTL  = 5 * time.Minute
	transactionListLimit = 100
)

// legacyPaymentMethods is the method set the dashboard accepted before the
// gateway surface existed. Wallet arrived with hosted checkout and is not
// valid here.
var legacyPaymentMethods = map[domain.PaymentMethod]bool{
	domain.PaymentMethodUPI:        true,
	domain.PaymentMethodCard:       true,
	domain.PaymentMethodNetbanking: true,
}

// TransactionServiceImpl implements ports.TransactionService, the user-scoped
// dashboard surface kept alongside the merchant gateway.
type TransactionServiceImpl struct {
	txRepo      ports.TransactionRepository
	txCache     ports.TransactionCache
	fraudEngine *FraudEngine
	authorizer  ports.Authorizer
	log         zerolog.Logger
}

func NewTransactionService(
	txRepo ports.TransactionRepository,
	txCache ports.TransactionCache,
	fraudEngine *FraudEngine,
	authorizer ports.Authorizer,
	log zerolog.Logger,
) *TransactionServiceImpl {
	return &TransactionServiceImpl{
		txRepo:      txRepo,
		txCache:     txCache,
		fraudEngine: fraudEngine,
		authorizer:  authorizer,
		log:         log,
	}
}

// Create charges the user once per idempotency key. The verdict is obtained
// before the row is inserted, so a transaction is born success or failed.
func (s *TransactionServiceImpl) Create(ctx context.Context, req ports.CreateTransactionRequest) (*domain.Transaction, bool, error) {
	if req.AmountPaise <= 0 {
		return nil, false, apperror.Validation("amount must be positive")
	}
	method := domain.PaymentMethod(strings.ToLower(req.PaymentMethod))
	if !legacyPaymentMethods[method] {
		return nil, false, apperror.Validation("payment_method must be one of upi, card, netbanking")
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.txRepo.GetByIdempotencyKey(ctx, req.UserID, *req.IdempotencyKey)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("idempotency lookup: %w", err))
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	now := time.Now().UTC()
	history, err := s.txRepo.History(ctx, req.UserID, now.Add(-domain.FraudWindow))
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", req.UserID.String()).Msg("transaction fraud history unavailable")
		history = &domain.FraudHistory{}
	}
	hits := s.fraudEngine.Evaluate(domain.FraudAttempt{
		PayerKey: "user:" + req.UserID.String(),
		Amount:   req.AmountPaise,
		Method:   method,
		At:       now,
	}, *history)

	txn := &domain.Transaction{
		ID:             uuid.New(),
		UserID:         req.UserID,
		AmountPaise:    req.AmountPaise,
		PaymentMethod:  method,
		IdempotencyKey: req.IdempotencyKey,
		IsFlagged:      len(hits) > 0,
		FraudRules:     hits,
		CreatedAt:      now,
	}

	verdict := s.authorizer.AuthorizeTransaction(ctx, txn)
	if verdict.Approved {
		txn.Status = domain.TransactionStatusSuccess
	} else {
		txn.Status = domain.TransactionStatusFailed
	}

	if err := s.txRepo.Create(ctx, txn); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("creating transaction: %w", err))
	}

	if err := s.txCache.Set(ctx, txn, transactionCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", txn.ID.String()).Msg("transaction cache set failed")
	}

	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Int64("amount_paise", txn.AmountPaise).
		Str("status", string(txn.Status)).
		Bool("is_flagged", txn.IsFlagged).
		Msg("transaction created")
	return txn, false, nil
}

// Get is cache-first. The cache only answers for the owner; admins reading
// another user's transaction go to the database.
func (s *TransactionServiceImpl) Get(ctx context.Context, userID uuid.UUID, role domain.Role, id uuid.UUID) (*domain.Transaction, error) {
	cached, err := s.txCache.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("transaction_id", id.String()).Msg("transaction cache get failed")
	}
	if cached != nil && cached.UserID == userID {
		return cached, nil
	}

	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetching transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.NotFound("transaction")
	}
	if txn.UserID != userID && role != domain.RoleAdmin {
		return nil, apperror.Forbidden("not authorized to view this transaction")
	}

	if err := s.txCache.Set(ctx, txn, transactionCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", id.String()).Msg("transaction cache set failed")
	}
	return txn, nil
}

// ListMine returns the caller's transactions, newest first.
func (s *TransactionServiceImpl) ListMine(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > transactionListLimit {
		limit = transactionListLimit
	}
	txns, err := s.txRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("listing transactions: %w", err))
	}
	return txns, nil
}

// Refund flips a successful transaction to refunded and drops it from the
// cache. Owner or admin only.
func (s *TransactionServiceImpl) Refund(ctx context.Context, userID uuid.UUID, role domain.Role, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("fetching transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.NotFound("transaction")
	}
	if txn.UserID != userID && role != domain.RoleAdmin {
		return nil, apperror.Forbidden("not authorized to refund this transaction")
	}
	if !txn.IsRefundable() {
		return nil, apperror.Conflict(fmt.Sprintf("cannot refund a transaction with status %q", txn.Status))
	}

	if err := s.txRepo.UpdateStatus(ctx, id, domain.TransactionStatusRefunded); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refunding transaction: %w", err))
	}
	txn.Status = domain.TransactionStatusRefunded

	if err := s.txCache.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", id.String()).Msg("transaction cache invalidation failed")
	}

	s.log.Info().
		Str("transaction_id", id.String()).
		Str("user_id", userID.String()).
		Msg("transaction refunded")
	return txn, nil
}
