package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo ports.UserRepository
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	auditSvc ports.AuditService
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo: userRepo,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		auditSvc: auditSvc,
		log:      log,
	}
}

// Register creates a dashboard account with the requested role.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return nil, apperror.Validation("invalid role")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.Conflict("email already registered")
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	s.auditSvc.Log(ctx, user.Email, domain.AuditActionRegister, "user", user.ID.String(), "", "")

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("email", logger.RedactEmail(user.Email)).
		Str("role", string(user.Role)).
		Msg("user registered")

	return user, nil
}

// Login validates credentials and returns a signed session token.
func (s *AuthServiceImpl) Login(ctx context.Context, req ports.LoginRequest) (*ports.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		// Burn a compare anyway so unknown emails cost the same as bad
		// passwords.
		s.hashSvc.Compare(dummyBcryptHash, req.Password)
		s.log.Warn().Str("email", logger.RedactEmail(email)).Msg("login failed")
		return nil, apperror.ErrInvalidCredentials()
	}

	if !s.hashSvc.Compare(user.PasswordHash, req.Password) {
		s.log.Warn().Str("email", logger.RedactEmail(email)).Msg("login failed")
		return nil, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.auditSvc.Log(ctx, user.Email, domain.AuditActionLogin, "session", user.ID.String(), "", "")

	return &ports.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// ChangePassword rotates the caller's password after verifying the current one.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return apperror.NotFound("user")
	}

	if !s.hashSvc.Compare(user.PasswordHash, current) {
		return apperror.ErrInvalidCredentials()
	}

	nextHash, err := s.hashSvc.Hash(next)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, nextHash); err != nil {
		return apperror.InternalError(fmt.Errorf("update password: %w", err))
	}

	s.auditSvc.Log(ctx, user.Email, domain.AuditActionChangePassword, "user", user.ID.String(), "", "")

	return nil
}

// dummyBcryptHash is a valid bcrypt hash of an unguessable value, compared
// against when the email is unknown to keep login timing uniform.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
