package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/hash"
	"github.com/ppdb-nexus/admissions-api/pkg/notify"
	"github.com/ppdb-nexus/admissions-api/pkg/tokencodec"
)

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	RefreshTokenExpiry    time.Duration
	ResetPasswordTokenTTL time.Duration
}

// AuthService provides the Identity component's operations.
type AuthService struct {
	users     *repository.UserRepository
	audit     *repository.AuditRepository
	hasher    hash.Hasher
	tokens    *tokencodec.Codec
	notifier  notify.Sink
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService.
func NewAuthService(users *repository.UserRepository, audit *repository.AuditRepository, hasher hash.Hasher,
	tokens *tokencodec.Codec, notifier notify.Sink, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{users: users, audit: audit, hasher: hasher, tokens: tokens, notifier: notifier, validator: validate, logger: logger, config: config}
}

// Register creates a parent account pending email verification.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing email")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	token := uuid.NewString()
	user := &models.User{
		Email:                  req.Email,
		PasswordHash:           passwordHash,
		FullName:               req.FullName,
		Phone:                  req.Phone,
		NationalID:             req.NationalID,
		Role:                   models.RoleParent,
		EmailVerified:          false,
		EmailVerificationToken: &token,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.recordAudit(ctx, user.ID, models.AuditActionRegister, "user", user.ID)
	return user, nil
}

// Login authenticates a user and issues tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if !user.EmailVerified {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "email not verified")
	}

	issuedAt := time.Now().UTC()
	accessToken, _, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue access token")
	}
	refreshToken, refreshExpiresAt, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue refresh token")
	}

	record := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExpiresAt,
	}
	if err := s.users.CreateRefreshToken(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.recordAudit(ctx, user.ID, models.AuditActionLogin, "user", user.ID)

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokens.AccessTTLSeconds(),
		IssuedAt:     issuedAt,
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
			SchoolID: user.SchoolID,
		},
	}, nil
}

// Refresh exchanges a refresh token for a new access token. Refresh tokens
// are not rotated on use; the same refresh token remains valid until it
// expires or Logout revokes it.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	claims, err := s.tokens.Parse(req.RefreshToken)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
	}
	if claims.Type != models.TokenTypeRefresh {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "wrong token type")
	}

	stored, err := s.users.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}
	if stored.Revoked || time.Now().UTC().After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token expired or revoked")
	}

	user, err := s.users.FindByIDUnscoped(ctx, stored.UserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
	}

	issuedAt := time.Now().UTC()
	accessToken, _, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue access token")
	}

	return &models.RefreshTokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   s.tokens.AccessTTLSeconds(),
		IssuedAt:    issuedAt,
	}, nil
}

// Logout revokes the refresh token. The access token itself is not
// revocable (stateless JWT) and simply expires on its own schedule.
func (s *AuthService) Logout(ctx context.Context, userID int64, req models.LogoutRequest) error {
	stored, err := s.users.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}
	if stored.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	if err := s.users.RevokeRefreshToken(ctx, stored.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}
	s.recordAudit(ctx, userID, models.AuditActionLogout, "user", userID)
	return nil
}

// VerifyEmail consumes an email verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	user, err := s.users.FindByVerificationToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrBadRequest, "unknown verification token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up verification token")
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark email verified")
	}
	return nil
}

// ForgotPassword issues a reset token and notifies the user. Always
// succeeds regardless of whether the email exists, to avoid
// leaking account existence.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up email")
	}

	token := uuid.NewString()
	expires := time.Now().UTC().Add(s.config.ResetPasswordTokenTTL)
	if err := s.users.SetResetPasswordToken(ctx, user.ID, token, expires); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist reset token")
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:       notify.EventPasswordResetRequested,
		Recipient:  user.Email,
		Subject:    "Password reset requested",
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// ResetPassword verifies a reset token and rehashes the password.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	user, err := s.users.FindByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrBadRequest, "unknown reset token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reset token")
	}
	if user.ResetPasswordExpires == nil || time.Now().UTC().After(*user.ResetPasswordExpires) {
		return appErrors.Clone(appErrors.ErrBadRequest, "reset token expired")
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.users.ClearResetPasswordToken(ctx, user.ID); err != nil {
		s.logger.Warn("failed to clear reset password token", zap.Error(err))
	}
	return nil
}

// ChangePassword changes the password for an already-authenticated user.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.users.FindByIDUnscoped(ctx, userID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if err := s.hasher.Compare(user.PasswordHash, req.OldPassword); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	s.recordAudit(ctx, userID, models.AuditActionPasswordChange, "user", userID)
	return nil
}

// ValidateToken parses an access token and re-validates it against the
// persisted user: the token body is untrusted for authorization purposes,
// only as a pointer to which user to look up. Role and school_id are
// always taken from the current database row, not the token, so a role
// change or deactivation takes effect on the very next request.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if claims.Type != models.TokenTypeAccess {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "wrong token type")
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token subject")
	}
	user, err := s.users.FindByIDUnscoped(ctx, userID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
	}

	claims.Role = user.Role
	claims.SchoolID = user.SchoolID
	claims.Email = user.Email
	return claims, nil
}

func (s *AuthService) recordAudit(ctx context.Context, userID int64, action models.AuditAction, entityType string, entityID int64) {
	if err := s.audit.Create(ctx, &models.AuditEntry{
		UserID:     &userID,
		EntityType: entityType,
		EntityID:   fmt.Sprintf("%d", entityID),
		Action:     action,
	}); err != nil {
		s.logger.Warn("failed to record audit entry", zap.Error(err))
	}
}
