package service

import (
	"context"
	"errors"
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

type authTestDeps struct {
	svc      *AuthServiceImpl
	userRepo *mocks.MockUserRepository
	hashSvc  *mocks.MockHashService
	tokenSvc *mocks.MockTokenService
	auditSvc *mocks.MockAuditService
	ctrl     *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		userRepo: mocks.NewMockUserRepository(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		tokenSvc: mocks.NewMockTokenService(ctrl),
		auditSvc: mocks.NewMockAuditService(ctrl),
		ctrl:     ctrl,
	}
	d.auditSvc.EXPECT().Log(
		gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Any(), gomock.Any(), gomock.Any(),
	).AnyTimes()
	d.svc = NewAuthService(d.userRepo, d.hashSvc, d.tokenSvc, d.auditSvc, newTestLogger())
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := ports.RegisterRequest{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "s3cret-pass",
		Role:     domain.RoleMerchant,
	}

	d.userRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret-pass").Return("hashed", nil)
	d.userRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, u *domain.User) error {
			assert.Equal(t, "alice@example.com", u.Email)
			assert.Equal(t, "hashed", u.PasswordHash)
			assert.Equal(t, domain.RoleMerchant, u.Role)
			return nil
		},
	)

	user, err := d.svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestAuthService_Register_DefaultsToUserRole(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, "bob@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hashed", nil)
	d.userRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	user, err := d.svc.Register(ctx, ports.RegisterRequest{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "pw12345678",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, "taken@example.com").Return(&domain.User{ID: uuid.New()}, nil)

	user, err := d.svc.Register(ctx, ports.RegisterRequest{
		Name:     "Eve",
		Email:    "taken@example.com",
		Password: "pw12345678",
	})
	assert.Nil(t, user)
	assertAppError(t, err, "conflict")
}

func TestAuthService_Register_InvalidRole(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	user, err := d.svc.Register(context.Background(), ports.RegisterRequest{
		Name:     "Mallory",
		Email:    "mallory@example.com",
		Password: "pw12345678",
		Role:     domain.Role("superuser"),
	})
	assert.Nil(t, user)
	assertAppError(t, err, "validation")
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		PasswordHash: "hashed",
		Role:         domain.RoleMerchant,
	}
	expiry := time.Now().Add(time.Hour)

	d.userRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil)
	d.hashSvc.EXPECT().Compare("hashed", "s3cret-pass").Return(true)
	d.tokenSvc.EXPECT().Generate(user).Return("tok123", expiry, nil)

	result, err := d.svc.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "tok123", result.Token)
	assert.Equal(t, expiry, result.ExpiresAt)
	assert.Equal(t, user, result.User)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, "ghost@example.com").Return(nil, nil)
	// A compare still runs so unknown emails cost the same as bad passwords.
	d.hashSvc.EXPECT().Compare(gomock.Any(), "whatever").Return(false)

	result, err := d.svc.Login(ctx, ports.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	assert.Nil(t, result)
	assertAppError(t, err, "unauthenticated")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	user := &domain.User{ID: uuid.New(), Email: "alice@example.com", PasswordHash: "hashed"}

	d.userRepo.EXPECT().GetByEmail(ctx, "alice@example.com").Return(user, nil)
	d.hashSvc.EXPECT().Compare("hashed", "wrong").Return(false)

	result, err := d.svc.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.Nil(t, result)
	assertAppError(t, err, "unauthenticated")
}

func TestAuthService_Login_RepoError(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.userRepo.EXPECT().GetByEmail(ctx, gomock.Any()).Return(nil, errors.New("db down"))

	result, err := d.svc.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: "pw"})
	assert.Nil(t, result)
	assertAppError(t, err, "internal")
}

func TestAuthService_ChangePassword_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	user := &domain.User{ID: userID, Email: "alice@example.com", PasswordHash: "old-hash"}

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(user, nil)
	d.hashSvc.EXPECT().Compare("old-hash", "old-pass").Return(true)
	d.hashSvc.EXPECT().Hash("new-pass").Return("new-hash", nil)
	d.userRepo.EXPECT().UpdatePassword(ctx, userID, "new-hash").Return(nil)

	err := d.svc.ChangePassword(ctx, userID, "old-pass", "new-pass")
	require.NoError(t, err)
}

func TestAuthService_ChangePassword_WrongCurrent(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, PasswordHash: "old-hash"}, nil)
	d.hashSvc.EXPECT().Compare("old-hash", "bad").Return(false)

	err := d.svc.ChangePassword(ctx, userID, "bad", "new-pass")
	assertAppError(t, err, "unauthenticated")
}

func TestAuthService_ChangePassword_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(nil, nil)

	err := d.svc.ChangePassword(ctx, userID, "old", "new")
	assertAppError(t, err, "not_found")
}
