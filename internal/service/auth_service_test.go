package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/pkg/tokencodec"
)

func newUserRepoMock(t *testing.T) (*repository.UserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return repository.NewUserRepository(sqlxdb), mock, func() { db.Close() }
}

var userRowColumns = []string{"id", "email", "password_hash", "full_name", "phone", "national_id", "role", "school_id",
	"email_verified", "email_verification_token", "reset_password_token", "reset_password_expires",
	"last_login_at", "deleted_at", "created_at", "updated_at"}

func TestValidateTokenRederivesRoleFromDatabase(t *testing.T) {
	users, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	codec := tokencodec.NewCodec("secret", "ppdb", time.Hour, 24*time.Hour)
	schoolID := int64(1)
	issuingUser := &models.User{ID: 42, Email: "admin@example.com", Role: models.RoleSchoolAdmin, SchoolID: &schoolID}
	token, _, err := codec.IssueAccess(issuingUser)
	require.NoError(t, err)

	svc := NewAuthService(users, nil, nil, codec, nil, nil, nil, AuthConfig{})

	now := time.Now()
	promotedSchoolID := int64(2)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(int64(42), "admin@example.com", "hash", "Admin", nil, nil, string(models.RoleSuperAdmin), promotedSchoolID,
			true, nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, phone, national_id, role, school_id,\nemail_verified, email_verification_token, reset_password_token, reset_password_expires,\nlast_login_at, deleted_at, created_at, updated_at FROM users WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	// The token was issued with school_admin/school 1; the DB row now says
	// super_admin/school 2 — ValidateToken must trust the DB row, not the
	// stale claims baked into the token at issuance.
	assert.Equal(t, models.RoleSuperAdmin, claims.Role)
	require.NotNil(t, claims.SchoolID)
	assert.Equal(t, promotedSchoolID, *claims.SchoolID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateTokenRejectsRefreshToken(t *testing.T) {
	users, _, cleanup := newUserRepoMock(t)
	defer cleanup()

	codec := tokencodec.NewCodec("secret", "ppdb", time.Hour, 24*time.Hour)
	svc := NewAuthService(users, nil, nil, codec, nil, nil, nil, AuthConfig{})

	refreshToken, _, err := codec.IssueRefresh(&models.User{ID: 1, Role: models.RoleParent})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), refreshToken)
	assert.Error(t, err)
}

func TestValidateTokenRejectsDeletedUser(t *testing.T) {
	users, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	codec := tokencodec.NewCodec("secret", "ppdb", time.Hour, 24*time.Hour)
	svc := NewAuthService(users, nil, nil, codec, nil, nil, nil, AuthConfig{})

	token, _, err := codec.IssueAccess(&models.User{ID: 7, Role: models.RoleParent})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, phone, national_id, role, school_id,\nemail_verified, email_verification_token, reset_password_token, reset_password_expires,\nlast_login_at, deleted_at, created_at, updated_at FROM users WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
