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

// MerchantServiceImpl implements ports.MerchantService.
type MerchantServiceImpl struct {
	merchantRepo ports.MerchantRepository
	apiKeyRepo   ports.ApiKeyRepository
	keyCache     ports.ApiKeyCache
	hashSvc      ports.HashService
	refSvc       ports.ReferenceService
	auditSvc     ports.AuditService
	log          zerolog.Logger
}

// NewMerchantService creates a new MerchantServiceImpl.
func NewMerchantService(
	merchantRepo ports.MerchantRepository,
	apiKeyRepo ports.ApiKeyRepository,
	keyCache ports.ApiKeyCache,
	hashSvc ports.HashService,
	refSvc ports.ReferenceService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *MerchantServiceImpl {
	return &MerchantServiceImpl{
		merchantRepo: merchantRepo,
		apiKeyRepo:   apiKeyRepo,
		keyCache:     keyCache,
		hashSvc:      hashSvc,
		refSvc:       refSvc,
		auditSvc:     auditSvc,
		log:          log,
	}
}

// CreateMerchant onboards a merchant profile for a dashboard user. A user
// owns at most one merchant; a second create conflicts.
func (s *MerchantServiceImpl) CreateMerchant(ctx context.Context, req ports.CreateMerchantRequest) (*domain.Merchant, error) {
	existing, err := s.merchantRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check merchant: %w", err))
	}
	if existing != nil {
		return nil, apperror.Conflict("merchant profile already exists for this user")
	}

	webhookSecret, err := s.refSvc.NewWebhookSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
	}

	merchant := &domain.Merchant{
		ID:            uuid.New(),
		UserID:        req.UserID,
		BusinessName:  req.BusinessName,
		BusinessEmail: req.BusinessEmail,
		Website:       req.Website,
		WebhookURL:    req.WebhookURL,
		WebhookSecret: webhookSecret,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.merchantRepo.Create(ctx, merchant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create merchant: %w", err))
	}

	s.auditSvc.Log(ctx, req.UserID.String(), domain.AuditActionCreateMerchant, "merchant", merchant.ID.String(), "", "")

	s.log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("user_id", req.UserID.String()).
		Msg("merchant created")

	return merchant, nil
}

// GetByUserID resolves the merchant profile owned by a dashboard user.
func (s *MerchantServiceImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.NotFound("merchant")
	}
	return merchant, nil
}

// IssueKey mints an API credential pair. The plaintext secret appears in the
// return value exactly once; only its bcrypt hash is stored.
func (s *MerchantServiceImpl) IssueKey(ctx context.Context, merchantID uuid.UUID, label string) (*ports.IssuedKey, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.NotFound("merchant")
	}

	keyID, err := s.refSvc.NewKeyID()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key id: %w", err))
	}
	keySecret, err := s.refSvc.NewKeySecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key secret: %w", err))
	}
	secretHash, err := s.hashSvc.Hash(keySecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash key secret: %w", err))
	}

	key := &domain.ApiKey{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		KeyID:         keyID,
		KeySecretHash: secretHash,
		Label:         label,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create api key: %w", err))
	}

	s.auditSvc.Log(ctx, merchantID.String(), domain.AuditActionIssueKey, "api_key", keyID, "", "")

	return &ports.IssuedKey{
		KeyID:     keyID,
		KeySecret: keySecret,
		Label:     label,
		CreatedAt: key.CreatedAt,
	}, nil
}

// RevokeKey deactivates a key and drops its cache entry so revocation takes
// effect immediately rather than after the cache TTL.
func (s *MerchantServiceImpl) RevokeKey(ctx context.Context, merchantID uuid.UUID, keyID string) error {
	revoked, err := s.apiKeyRepo.Revoke(ctx, merchantID, keyID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("revoke key: %w", err))
	}
	if !revoked {
		return apperror.NotFound("api key")
	}

	if err := s.keyCache.Delete(ctx, keyID); err != nil {
		s.log.Warn().Err(err).Str("key_id", keyID).Msg("failed to evict api key cache entry")
	}

	s.auditSvc.Log(ctx, merchantID.String(), domain.AuditActionRevokeKey, "api_key", keyID, "", "")

	return nil
}

// ResolveKey authenticates a key_id/secret pair. Unknown key, inactive key
// and wrong secret all collapse into one generic credential error; a bcrypt
// compare runs on every path so the caller cannot probe for valid key IDs.
func (s *MerchantServiceImpl) ResolveKey(ctx context.Context, keyID, keySecret string) (*domain.Merchant, error) {
	if key, merchant, err := s.keyCache.Get(ctx, keyID); err != nil {
		s.log.Warn().Err(err).Str("key_id", keyID).Msg("api key cache read failed, falling through to DB")
	} else if key != nil && merchant != nil {
		if !key.Active || !s.hashSvc.Compare(key.KeySecretHash, keySecret) {
			return nil, apperror.ErrInvalidCredentials()
		}
		s.touchLastUsed(keyID)
		return merchant, nil
	}

	key, err := s.apiKeyRepo.GetByKeyID(ctx, keyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find api key: %w", err))
	}
	if key == nil || !key.Active {
		s.hashSvc.Compare(dummyBcryptHash, keySecret)
		return nil, apperror.ErrInvalidCredentials()
	}

	if !s.hashSvc.Compare(key.KeySecretHash, keySecret) {
		return nil, apperror.ErrInvalidCredentials()
	}

	merchant, err := s.merchantRepo.GetByID(ctx, key.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	if err := s.keyCache.Set(ctx, key, merchant); err != nil {
		s.log.Warn().Err(err).Str("key_id", keyID).Msg("failed to cache resolved api key")
	}
	s.touchLastUsed(keyID)

	return merchant, nil
}

// touchLastUsed bumps last_used_at outside the request path. Best-effort.
func (s *MerchantServiceImpl) touchLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.apiKeyRepo.TouchLastUsed(ctx, keyID, time.Now().UTC()); err != nil {
			s.log.Warn().Err(err).Str("key_id", keyID).Msg("failed to bump key last_used_at")
		}
	}()
}
