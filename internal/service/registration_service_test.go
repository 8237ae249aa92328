package service

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

func newRegistrationServiceMock(t *testing.T) (*RegistrationService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	store := repository.NewStore(sqlxdb)
	registrations := repository.NewRegistrationRepository(sqlxdb)
	periods := repository.NewPeriodRepository(sqlxdb)
	paths := repository.NewPathRepository(sqlxdb)
	documents := NewDocumentService(store, repository.NewDocumentRepository(sqlxdb), nil)
	svc := NewRegistrationService(store, registrations, periods, paths, documents, nil)
	return svc, mock, func() { db.Close() }
}

func ownRegRow(id int64, status models.RegistrationStatus) []driver.Value {
	now := time.Now()
	return []driver.Value{id, int64(1), int64(5), int64(1), int64(10), nil, "Student", "1234567890", now, "Parent", nil, "0800",
		nil, []byte("{}"), nil, nil, string(status), nil, nil, nil, nil, nil, now, now}
}

// TestEnrollRejectsInvalidTransition guards the state machine directly: a
// registration not currently accepted may never transition to enrolled, no
// matter the caller.
func TestEnrollRejectsInvalidTransition(t *testing.T) {
	svc, mock, cleanup := newRegistrationServiceMock(t)
	defer cleanup()

	scope := tenantctx.Scope{Role: models.RoleParent, UserID: 5}
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows(regRowColumns).AddRow(ownRegRow(1, models.RegistrationSubmitted)...))

	_, err := svc.Enroll(context.Background(), scope, 1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestEnrollRelocksBeforeApplying covers the re-check under the row lock:
// even once the precondition reads pass, ApplyEnroll only runs if the
// locked read still reports accepted.
func TestEnrollRelocksBeforeApplying(t *testing.T) {
	svc, mock, cleanup := newRegistrationServiceMock(t)
	defer cleanup()

	scope := tenantctx.Scope{Role: models.RoleParent, UserID: 5}
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows(regRowColumns).AddRow(ownRegRow(1, models.RegistrationAccepted)...))

	future := time.Now().Add(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM periods WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(periodRowWithDeadline(1, future))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM registrations WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(models.RegistrationAccepted)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs(int64(1), string(models.RegistrationEnrolled), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows(regRowColumns).AddRow(ownRegRow(1, models.RegistrationEnrolled)...))

	reg, err := svc.Enroll(context.Background(), scope, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationEnrolled, reg.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func periodRowWithDeadline(id int64, deadline time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(periodRowColumns).
		AddRow(id, int64(1), "2026", "sma", now, now, now, now, nil, deadline, string(models.PeriodStatusActive), nil, nil, now, now)
}
