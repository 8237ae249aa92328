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
)

var periodRowColumns = []string{"id", "school_id", "academic_year", "level", "start_date", "end_date",
	"registration_start", "registration_end", "announcement_date", "reenrollment_deadline", "status",
	"selection_run_at", "announced_at", "created_at", "updated_at"}

var pathRowColumns = []string{"id", "period_id", "path_type", "name", "quota", "description", "scoring_config", "created_at", "updated_at"}

var regRowColumns = []string{"id", "school_id", "user_id", "period_id", "path_id", "registration_number",
	"student_name", "student_nisn", "student_birth_date", "parent_name", "parent_nik", "parent_phone",
	"previous_school_name", "path_data", "selection_score", "ranking", "status", "rejection_reason", "admin_notes",
	"submitted_at", "verified_at", "verified_by", "created_at", "updated_at"}

func newSelectionServiceMock(t *testing.T) (*SelectionService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	store := repository.NewStore(sqlxdb)
	periods := repository.NewPeriodRepository(sqlxdb)
	paths := repository.NewPathRepository(sqlxdb)
	registrations := repository.NewRegistrationRepository(sqlxdb)
	documents := repository.NewDocumentRepository(sqlxdb)
	svc := NewSelectionService(store, registrations, periods, paths, documents, nil, nil)
	return svc, mock, func() { db.Close() }
}

func periodRow(id int64, status models.PeriodStatus, selectionRunAt *time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(periodRowColumns).
		AddRow(id, int64(1), "2026", string(models.Level("sma")), now, now, now, now, nil, now, string(status), selectionRunAt, nil, now, now)
}

func regRow(id, pathID int64, rank int, status models.RegistrationStatus) []driver.Value {
	now := time.Now()
	return []driver.Value{id, int64(1), int64(1), int64(1), pathID, nil, "Student", "1234567890", now, "Parent", nil, "0800",
		nil, []byte("{}"), 80.0, rank, string(status), nil, nil, nil, nil, nil, now, now}
}

// TestRunSelectionQuotaHoldsAcrossForcedRerun demonstrates that a forced
// re-run subtracts registrations already accepted on a path from its quota
// before accepting newly-ranked ones, so total accepted never exceeds the
// path's quota.
func TestRunSelectionQuotaHoldsAcrossForcedRerun(t *testing.T) {
	svc, mock, cleanup := newSelectionServiceMock(t)
	defer cleanup()

	ranAt := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, academic_year, level, start_date, end_date, registration_start,\nregistration_end, announcement_date, reenrollment_deadline, status, selection_run_at, announced_at, created_at, updated_at FROM periods WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(periodRow(1, models.PeriodStatusActive, &ranAt))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, period_id, path_type, name, quota, description, scoring_config, created_at, updated_at FROM registration_paths WHERE period_id = $1 ORDER BY path_type")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(pathRowColumns).AddRow(int64(10), int64(1), string(models.PathTypeZonasi), "Zonasi", 2, "", []byte("{}"), time.Now(), time.Now()))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, academic_year, level, start_date, end_date, registration_start,\nregistration_end, announcement_date, reenrollment_deadline, status, selection_run_at, announced_at, created_at, updated_at FROM periods WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(periodRow(1, models.PeriodStatusActive, &ranAt))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_id, user_id, period_id, path_id, registration_number,\nstudent_name, student_nisn, student_birth_date, parent_name, parent_nik, parent_phone,\nprevious_school_name, path_data, selection_score, ranking, status, rejection_reason, admin_notes,\nsubmitted_at, verified_at, verified_by, created_at, updated_at FROM registrations\nWHERE path_id = $1 AND status = $2\nORDER BY selection_score DESC NULLS LAST, created_at ASC, id ASC")).
		WithArgs(int64(10), string(models.RegistrationVerified)).
		WillReturnRows(sqlmock.NewRows(regRowColumns).
			AddRow(regRow(200, 10, 1, models.RegistrationVerified)...).
			AddRow(regRow(300, 10, 2, models.RegistrationVerified)...))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE path_id = $1 AND status = $2")).
		WithArgs(int64(10), string(models.RegistrationAccepted)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs(int64(200), string(models.RegistrationAccepted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET status = $2, rejection_reason = $3, verified_by = $4, updated_at = $5 WHERE id = $1")).
		WithArgs(int64(300), string(models.RegistrationRejected), rejectionQuotaExceeded, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET selection_run_at = $2, updated_at = $2 WHERE id = $1")).
		WithArgs(int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := svc.RunSelection(context.Background(), 1, true)
	require.NoError(t, err)
	require.Len(t, summary.Paths, 1)
	assert.Equal(t, 1, summary.Paths[0].Accepted, "only one additional seat remains after the prior accept")
	assert.Equal(t, 1, summary.Paths[0].Rejected)
	assert.Equal(t, 0, summary.Paths[0].RemainingQuota)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRunSelectionRefusesWhenVerificationsPendingWithoutForce guards the
// non-force path: a prior run plus newly-verified registrations must be
// refused with Conflict rather than silently reprocessed.
func TestRunSelectionRefusesWhenVerificationsPendingWithoutForce(t *testing.T) {
	svc, mock, cleanup := newSelectionServiceMock(t)
	defer cleanup()

	ranAt := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM periods WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(periodRow(1, models.PeriodStatusActive, &ranAt))

	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE period_id = $1 AND status = $2")).
		WithArgs(int64(1), string(models.RegistrationVerified)).
		WillReturnRows(sqlmock.NewRows(regRowColumns).AddRow(regRow(400, 10, 0, models.RegistrationVerified)...))

	_, err := svc.RunSelection(context.Background(), 1, false)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
