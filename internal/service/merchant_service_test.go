package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type merchantTestDeps struct {
	svc          *MerchantServiceImpl
	merchantRepo *mocks.MockMerchantRepository
	apiKeyRepo   *mocks.MockApiKeyRepository
	keyCache     *mocks.MockApiKeyCache
	hashSvc      *mocks.MockHashService
	auditSvc     *mocks.MockAuditService
	ctrl         *gomock.Controller
}

func setupMerchantService(t *testing.T) *merchantTestDeps {
	ctrl := gomock.NewController(t)
	d := &merchantTestDeps{
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		apiKeyRepo:   mocks.NewMockApiKeyRepository(ctrl),
		keyCache:     mocks.NewMockApiKeyCache(ctrl),
		hashSvc:      mocks.NewMockHashService(ctrl),
		auditSvc:     mocks.NewMockAuditService(ctrl),
		ctrl:         ctrl,
	}
	d.auditSvc.EXPECT().Log(
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Any(), gomock.Any(), gomock.Any(),
	).AnyTimes()
	d.svc = NewMerchantService(
		d.merchantRepo, d.apiKeyRepo, d.keyCache, d.hashSvc,
		NewRandomReferenceService(), d.auditSvc, newTestLogger(),
	)
	return d
}

func TestMerchantService_CreateMerchant_Success(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	webhookURL := "https://shop.example.com/hooks"

	d.merchantRepo.EXPECT().GetByUserID(ctx, userID).Return(nil, nil)
	d.merchantRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, m *domain.Merchant) error {
			assert.Equal(t, userID, m.UserID)
			assert.Equal(t, "Acme Traders", m.BusinessName)
			assert.Len(t, m.WebhookSecret, 64)
			return nil
		},
	)

	merchant, err := d.svc.CreateMerchant(ctx, ports.CreateMerchantRequest{
		UserID:        userID,
		BusinessName:  "Acme Traders",
		BusinessEmail: "billing@acme.example.com",
		WebhookURL:    &webhookURL,
	})
	require.NoError(t, err)
	assert.True(t, merchant.HasWebhook())
	assert.NotEmpty(t, merchant.WebhookSecret)
}

func TestMerchantService_CreateMerchant_AlreadyExists(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.merchantRepo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Merchant{ID: uuid.New()}, nil)

	merchant, err := d.svc.CreateMerchant(ctx, ports.CreateMerchantRequest{UserID: userID, BusinessName: "Dup"})
	assert.Nil(t, merchant)
	assertAppError(t, err, "conflict")
}

func TestMerchantService_IssueKey_Success(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{ID: merchantID}, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).DoAndReturn(func(plain string) (string, error) {
		assert.True(t, strings.HasPrefix(plain, "pf_sec_"))
		return "secret-hash", nil
	})
	d.apiKeyRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, k *domain.ApiKey) error {
			assert.Equal(t, merchantID, k.MerchantID)
			assert.Equal(t, "secret-hash", k.KeySecretHash)
			assert.True(t, k.Active)
			return nil
		},
	)

	issued, err := d.svc.IssueKey(ctx, merchantID, "production")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.KeyID, "pf_key_"))
	assert.True(t, strings.HasPrefix(issued.KeySecret, "pf_sec_"))
	assert.Equal(t, "production", issued.Label)
}

func TestMerchantService_IssueKey_UnknownMerchant(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(nil, nil)

	issued, err := d.svc.IssueKey(ctx, merchantID, "production")
	assert.Nil(t, issued)
	assertAppError(t, err, "not_found")
}

func TestMerchantService_RevokeKey_Success(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.apiKeyRepo.EXPECT().Revoke(ctx, merchantID, "pf_key_abc").Return(true, nil)
	d.keyCache.EXPECT().Delete(ctx, "pf_key_abc").Return(nil)

	err := d.svc.RevokeKey(ctx, merchantID, "pf_key_abc")
	require.NoError(t, err)
}

func TestMerchantService_RevokeKey_NotOwned(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	d.apiKeyRepo.EXPECT().Revoke(ctx, merchantID, "pf_key_other").Return(false, nil)

	err := d.svc.RevokeKey(ctx, merchantID, "pf_key_other")
	assertAppError(t, err, "not_found")
}

func TestMerchantService_ResolveKey_CacheHit(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchant := &domain.Merchant{ID: uuid.New()}
	key := &domain.ApiKey{KeyID: "pf_key_abc", KeySecretHash: "hash", Active: true}

	var wg sync.WaitGroup
	wg.Add(1)

	d.keyCache.EXPECT().Get(ctx, "pf_key_abc").Return(key, merchant, nil)
	d.hashSvc.EXPECT().Compare("hash", "pf_sec_xyz").Return(true)
	d.apiKeyRepo.EXPECT().TouchLastUsed(gomock.Any(), "pf_key_abc", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, _ time.Time) error {
			wg.Done()
			return nil
		},
	)

	got, err := d.svc.ResolveKey(ctx, "pf_key_abc", "pf_sec_xyz")
	require.NoError(t, err)
	assert.Equal(t, merchant, got)
	wg.Wait()
}

func TestMerchantService_ResolveKey_CacheMissThenDB(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	merchant := &domain.Merchant{ID: merchantID}
	key := &domain.ApiKey{KeyID: "pf_key_abc", MerchantID: merchantID, KeySecretHash: "hash", Active: true}

	var wg sync.WaitGroup
	wg.Add(1)

	d.keyCache.EXPECT().Get(ctx, "pf_key_abc").Return(nil, nil, nil)
	d.apiKeyRepo.EXPECT().GetByKeyID(ctx, "pf_key_abc").Return(key, nil)
	d.hashSvc.EXPECT().Compare("hash", "pf_sec_xyz").Return(true)
	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(merchant, nil)
	d.keyCache.EXPECT().Set(ctx, key, merchant).Return(nil)
	d.apiKeyRepo.EXPECT().TouchLastUsed(gomock.Any(), "pf_key_abc", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, _ time.Time) error {
			wg.Done()
			return nil
		},
	)

	got, err := d.svc.ResolveKey(ctx, "pf_key_abc", "pf_sec_xyz")
	require.NoError(t, err)
	assert.Equal(t, merchant, got)
	wg.Wait()
}

func TestMerchantService_ResolveKey_UnknownKeyStillCompares(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.keyCache.EXPECT().Get(ctx, "pf_key_ghost").Return(nil, nil, nil)
	d.apiKeyRepo.EXPECT().GetByKeyID(ctx, "pf_key_ghost").Return(nil, nil)
	// The dummy compare keeps unknown key IDs as slow as wrong secrets.
	d.hashSvc.EXPECT().Compare(gomock.Any(), "pf_sec_xyz").Return(false)

	got, err := d.svc.ResolveKey(ctx, "pf_key_ghost", "pf_sec_xyz")
	assert.Nil(t, got)
	assertAppError(t, err, "unauthenticated")
}

func TestMerchantService_ResolveKey_InactiveKey(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := &domain.ApiKey{KeyID: "pf_key_abc", KeySecretHash: "hash", Active: false}

	d.keyCache.EXPECT().Get(ctx, "pf_key_abc").Return(nil, nil, nil)
	d.apiKeyRepo.EXPECT().GetByKeyID(ctx, "pf_key_abc").Return(key, nil)
	d.hashSvc.EXPECT().Compare(gomock.Any(), "pf_sec_xyz").Return(true)

	got, err := d.svc.ResolveKey(ctx, "pf_key_abc", "pf_sec_xyz")
	assert.Nil(t, got)
	assertAppError(t, err, "unauthenticated")
}

func TestMerchantService_ResolveKey_WrongSecret(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := &domain.ApiKey{KeyID: "pf_key_abc", MerchantID: uuid.New(), KeySecretHash: "hash", Active: true}

	d.keyCache.EXPECT().Get(ctx, "pf_key_abc").Return(nil, nil, nil)
	d.apiKeyRepo.EXPECT().GetByKeyID(ctx, "pf_key_abc").Return(key, nil)
	d.hashSvc.EXPECT().Compare("hash", "wrong").Return(false)

	got, err := d.svc.ResolveKey(ctx, "pf_key_abc", "wrong")
	assert.Nil(t, got)
	assertAppError(t, err, "unauthenticated")
}

func TestMerchantService_ResolveKey_CacheErrorFallsThrough(t *testing.T) {
	d := setupMerchantService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	merchant := &domain.Merchant{ID: merchantID}
	key := &domain.ApiKey{KeyID: "pf_key_abc", MerchantID: merchantID, KeySecretHash: "hash", Active: true}

	var wg sync.WaitGroup
	wg.Add(1)

	d.keyCache.EXPECT().Get(ctx, "pf_key_abc").Return(nil, nil, errors.New("redis down"))
	d.apiKeyRepo.EXPECT().GetByKeyID(ctx, "pf_key_abc").Return(key, nil)
	d.hashSvc.EXPECT().Compare("hash", "pf_sec_xyz").Return(true)
	d.merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(merchant, nil)
	d.keyCache.EXPECT().Set(ctx, key, merchant).Return(nil)
	d.apiKeyRepo.EXPECT().TouchLastUsed(gomock.Any(), "pf_key_abc", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, _ time.Time) error {
			wg.Done()
			return nil
		},
	)

	got, err := d.svc.ResolveKey(ctx, "pf_key_abc", "pf_sec_xyz")
	require.NoError(t, err)
	assert.Equal(t, merchant, got)
	wg.Wait()
}
