package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/hash"
)

// UserService manages tenant-scoped user accounts.
type UserService struct {
	users  *repository.UserRepository
	hasher hash.Hasher
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users *repository.UserRepository, hasher hash.Hasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, logger: logger}
}

// Create inserts a user within the caller's tenant. Only super_admin may
// create another super_admin account.
func (s *UserService) Create(ctx context.Context, scope tenantctx.Scope, user *models.User, password string) error {
	if user.Role == models.RoleSuperAdmin && !scope.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only super_admin may create super_admin accounts")
	}
	if _, err := s.users.FindByEmail(ctx, user.Email); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing email")
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user.PasswordHash = passwordHash
	user.EmailVerified = true
	if !scope.IsSuperAdmin() {
		user.SchoolID = scope.SchoolID
	}

	if err := s.users.Create(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return nil
}

// Get returns a user, tenant-scoped.
func (s *UserService) Get(ctx context.Context, scope tenantctx.Scope, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

// Me returns the caller's own profile.
func (s *UserService) Me(ctx context.Context, scope tenantctx.Scope) (*models.User, error) {
	user, err := s.users.FindByIDUnscoped(ctx, scope.UserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return user, nil
}

// List returns users matching the filter, tenant-scoped.
func (s *UserService) List(ctx context.Context, scope tenantctx.Scope, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return users, models.NewPagination(page, pageSize, total), nil
}

// Update persists mutable profile fields.
func (s *UserService) Update(ctx context.Context, scope tenantctx.Scope, user *models.User) error {
	if _, err := s.Get(ctx, scope, user.ID); err != nil {
		return err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return nil
}

// Delete removes a school_admin, refusing to remove the last active
// school_admin of a school ( delete guard).
func (s *UserService) Delete(ctx context.Context, scope tenantctx.Scope, id int64) error {
	target, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if target.Role == models.RoleSchoolAdmin && target.SchoolID != nil {
		count, err := s.users.CountActiveSchoolAdmins(ctx, *target.SchoolID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count school admins")
		}
		if count <= 1 {
			return appErrors.Clone(appErrors.ErrConflict, "cannot remove the last active school_admin")
		}
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	return nil
}
