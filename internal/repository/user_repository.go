package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, phone, national_id, role, school_id,
email_verified, email_verification_token, reset_password_token, reset_password_expires,
last_login_at, deleted_at, created_at, updated_at`

// FindByEmail returns a user by email address. Email is globally unique so
// no tenant filter applies.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// GetByID returns a user scoped to the caller's tenant, unless super_admin.
func (r *UserRepository) GetByID(ctx context.Context, scope tenantctx.Scope, id int64) (*models.User, error) {
	conditions := []string{"id = $1", "deleted_at IS NULL"}
	args := []interface{}{id}
	appendTenantFilter(&conditions, &args, scope, "school_id")

	query := "SELECT " + userColumns + " FROM users" + whereClause(conditions)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// FindByIDUnscoped fetches a user without tenant filtering, for internal
// use by the auth flow where scope has not yet been resolved.
func (r *UserRepository) FindByIDUnscoped(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns users matching the filter with total count, tenant-scoped.
func (r *UserRepository) List(ctx context.Context, scope tenantctx.Scope, filter models.UserFilter) ([]models.User, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}
	appendTenantFilter(&conditions, &args, scope, "school_id")

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args), len(args)))
	}

	baseQuery := "FROM users" + whereClause(conditions)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// CountActiveSchoolAdmins counts non-deleted school_admin users of a
// school, used to reject deleting the last one.
func (r *UserRepository) CountActiveSchoolAdmins(ctx context.Context, schoolID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE school_id = $1 AND role = $2 AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, models.RoleSchoolAdmin); err != nil {
		return 0, fmt.Errorf("count active school admins: %w", err)
	}
	return count, nil
}

// Create inserts a new user and populates its generated ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO users (email, password_hash, full_name, phone, national_id, role, school_id,
email_verified, email_verification_token, reset_password_token, reset_password_expires, last_login_at, created_at, updated_at)
VALUES (:email, :password_hash, :full_name, :phone, :national_id, :role, :school_id,
:email_verified, :email_verification_token, :reset_password_token, :reset_password_expires, :last_login_at, :created_at, :updated_at)
RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&user.ID); err != nil {
			return fmt.Errorf("scan created user id: %w", err)
		}
	}
	return nil
}

// Update updates mutable profile fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, phone = :phone, national_id = :national_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login_at timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	const query = `UPDATE users SET last_login_at = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SoftDelete marks a user deleted without removing its row, preserving
// audit and registration history.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE users SET deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	return nil
}

// SetEmailVerificationToken stores a fresh verification token.
func (r *UserRepository) SetEmailVerificationToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE users SET email_verification_token = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("set email verification token: %w", err)
	}
	return nil
}

// FindByVerificationToken returns the user owning an unconsumed token.
func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email_verification_token = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by verification token: %w", err)
	}
	return &user, nil
}

// MarkEmailVerified clears the verification token and sets the flag.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	const query = `UPDATE users SET email_verified = TRUE, email_verification_token = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

// SetResetPasswordToken stores a reset token with expiry.
func (r *UserRepository) SetResetPasswordToken(ctx context.Context, id int64, token string, expires time.Time) error {
	const query = `UPDATE users SET reset_password_token = $2, reset_password_expires = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token, expires, time.Now().UTC()); err != nil {
		return fmt.Errorf("set reset password token: %w", err)
	}
	return nil
}

// FindByResetToken returns the user owning an unconsumed reset token.
func (r *UserRepository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE reset_password_token = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	return &user, nil
}

// ClearResetPasswordToken clears the reset token after use.
func (r *UserRepository) ClearResetPasswordToken(ctx context.Context, id int64) error {
	const query = `UPDATE users SET reset_password_token = NULL, reset_password_expires = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear reset password token: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (user_id, token, expires_at, revoked, created_at)
VALUES (:user_id, :token, :expires_at, :revoked, :created_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&token.ID); err != nil {
			return fmt.Errorf("scan created refresh token id: %w", err)
		}
	}
	return nil
}

// FindRefreshToken returns a refresh token by its value.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, revoked, revoked_at, created_at FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a single token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// CreateAuditEntry stores an append-only audit log row.
func (r *UserRepository) CreateAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_entries (school_id, user_id, entity_type, entity_id, action, old_value, new_value, ip_address, user_agent, created_at)
VALUES (:school_id, :user_id, :entity_type, :entity_id, :action, :old_value, :new_value, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}
