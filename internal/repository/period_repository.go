package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// PeriodRepository provides persistence for admission Periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs a PeriodRepository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `id, school_id, academic_year, level, start_date, end_date, registration_start,
registration_end, announcement_date, reenrollment_deadline, status, selection_run_at, announced_at, created_at, updated_at`

// GetByID returns a period, tenant-scoped.
func (r *PeriodRepository) GetByID(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Period, error) {
	conditions := []string{"id = $1"}
	args := []interface{}{id}
	appendTenantFilter(&conditions, &args, scope, "school_id")

	query := "SELECT " + periodColumns + " FROM periods" + whereClause(conditions)
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get period: %w", err)
	}
	return &period, nil
}

// GetByIDUnscoped fetches without tenant filtering, for internal callers
// (e.g. public result lookup, which needs the announced period regardless
// of the anonymous caller's absent scope).
func (r *PeriodRepository) GetByIDUnscoped(ctx context.Context, id int64) (*models.Period, error) {
	const query = `SELECT ` + periodColumns + ` FROM periods WHERE id = $1`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get period unscoped: %w", err)
	}
	return &period, nil
}

// List returns periods for the caller's tenant (or all, if super_admin).
func (r *PeriodRepository) List(ctx context.Context, scope tenantctx.Scope, page, pageSize int) ([]models.Period, int, error) {
	var conditions []string
	var args []interface{}
	appendTenantFilter(&conditions, &args, scope, "school_id")

	baseQuery := "FROM periods" + whereClause(conditions)
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", periodColumns, baseQuery, pageSize, offset)
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list periods: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count periods: %w", err)
	}
	return periods, total, nil
}

// Create inserts a period as draft.
func (r *PeriodRepository) Create(ctx context.Context, period *models.Period) error {
	now := time.Now().UTC()
	period.CreatedAt = now
	period.UpdatedAt = now
	const query = `INSERT INTO periods (school_id, academic_year, level, start_date, end_date, registration_start,
registration_end, reenrollment_deadline, status, created_at, updated_at)
VALUES (:school_id, :academic_year, :level, :start_date, :end_date, :registration_start,
:registration_end, :reenrollment_deadline, :status, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, period)
	if err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&period.ID); err != nil {
			return fmt.Errorf("scan created period id: %w", err)
		}
	}
	return nil
}

// Update persists mutable period fields.
func (r *PeriodRepository) Update(ctx context.Context, period *models.Period) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE periods SET academic_year = :academic_year, level = :level, start_date = :start_date,
end_date = :end_date, registration_start = :registration_start, registration_end = :registration_end,
reenrollment_deadline = :reenrollment_deadline, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// Delete removes a draft period that has no non-draft registrations
// (precondition checked by the service before calling this).
func (r *PeriodRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM periods WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return nil
}

// FindActiveByKey returns the currently active period for
// (school_id, academic_year, level), if any.
func (r *PeriodRepository) FindActiveByKey(ctx context.Context, schoolID int64, academicYear string, level models.Level) (*models.Period, error) {
	const query = `SELECT ` + periodColumns + ` FROM periods WHERE school_id = $1 AND academic_year = $2 AND level = $3 AND status = $4`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, schoolID, academicYear, level, models.PeriodStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active period: %w", err)
	}
	return &period, nil
}

// ActivateWithinTx sets one period active and closes any other active
// period sharing (school_id, academic_year, level), inside a caller-owned
// transaction so both writes commit atomically.
func (r *PeriodRepository) ActivateWithinTx(ctx context.Context, tx *sqlx.Tx, period *models.Period) error {
	const closeQuery = `UPDATE periods SET status = $1, updated_at = $2
WHERE school_id = $3 AND academic_year = $4 AND level = $5 AND status = $6 AND id != $7`
	if _, err := tx.ExecContext(ctx, closeQuery, models.PeriodStatusClosed, time.Now().UTC(),
		period.SchoolID, period.AcademicYear, period.Level, models.PeriodStatusActive, period.ID); err != nil {
		return fmt.Errorf("close previous active period: %w", err)
	}

	const activateQuery = `UPDATE periods SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, activateQuery, models.PeriodStatusActive, time.Now().UTC(), period.ID); err != nil {
		return fmt.Errorf("activate period: %w", err)
	}
	return nil
}

// SetStatus updates only the status column.
func (r *PeriodRepository) SetStatus(ctx context.Context, id int64, status models.PeriodStatus) error {
	const query = `UPDATE periods SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set period status: %w", err)
	}
	return nil
}

// CountNonDraftRegistrations reports whether a period may still be deleted.
func (r *PeriodRepository) CountNonDraftRegistrations(ctx context.Context, periodID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE period_id = $1 AND status != $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, periodID, models.RegistrationDraft); err != nil {
		return 0, fmt.Errorf("count non-draft registrations: %w", err)
	}
	return count, nil
}

// LockForSubmit locks the period row and returns the next submission
// sequence number, serializing registration_number minting per period.
// Callers must run this inside a transaction and hold tx until the
// submission write commits.
func (r *PeriodRepository) LockForSubmit(ctx context.Context, tx *sqlx.Tx, periodID int64) (nextSeq int, err error) {
	const lockQuery = `SELECT id FROM periods WHERE id = $1 FOR UPDATE`
	var lockedID int64
	if err := tx.GetContext(ctx, &lockedID, lockQuery, periodID); err != nil {
		return 0, fmt.Errorf("lock period for submit: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM registrations WHERE period_id = $1 AND registration_number IS NOT NULL`
	var count int
	if err := tx.GetContext(ctx, &count, countQuery, periodID); err != nil {
		return 0, fmt.Errorf("count period submissions: %w", err)
	}
	return count + 1, nil
}

// LockForSelection acquires a row-level lock on the period and returns its
// current row, serializing concurrent UpdateRankings/RunSelection calls for
// the same period. Callers must run this inside a transaction and hold tx
// until the ranking/selection writes commit.
func (r *PeriodRepository) LockForSelection(ctx context.Context, tx *sqlx.Tx, periodID int64) (*models.Period, error) {
	const query = `SELECT ` + periodColumns + ` FROM periods WHERE id = $1 FOR UPDATE`
	var period models.Period
	if err := tx.GetContext(ctx, &period, query, periodID); err != nil {
		return nil, fmt.Errorf("lock period for selection: %w", err)
	}
	return &period, nil
}

// MarkSelectionRun stamps selection_run_at, the precondition Announce checks.
func (r *PeriodRepository) MarkSelectionRun(ctx context.Context, tx *sqlx.Tx, periodID int64, at time.Time) error {
	const query = `UPDATE periods SET selection_run_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, periodID, at); err != nil {
		return fmt.Errorf("mark selection run: %w", err)
	}
	return nil
}

// MarkAnnounced stamps announcement_date/announced_at, idempotently.
func (r *PeriodRepository) MarkAnnounced(ctx context.Context, periodID int64, announcementDate, announcedAt time.Time) error {
	const query = `UPDATE periods SET announcement_date = COALESCE(announcement_date, $2), announced_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, periodID, announcementDate, announcedAt); err != nil {
		return fmt.Errorf("mark announced: %w", err)
	}
	return nil
}
