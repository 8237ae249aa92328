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

// RegistrationRepository provides persistence for Registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, school_id, user_id, period_id, path_id, registration_number,
student_name, student_nisn, student_birth_date, parent_name, parent_nik, parent_phone,
previous_school_name, path_data, selection_score, ranking, status, rejection_reason, admin_notes,
submitted_at, verified_at, verified_by, created_at, updated_at`

// GetByID returns a registration, tenant/owner scoped.
func (r *RegistrationRepository) GetByID(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Registration, error) {
	conditions := []string{"id = $1"}
	args := []interface{}{id}
	appendTenantFilter(&conditions, &args, scope, "school_id")
	appendOwnerFilter(&conditions, &args, scope, "user_id", scope.Role == models.RoleParent)

	query := "SELECT " + registrationColumns + " FROM registrations" + whereClause(conditions)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// GetActiveByPeriodAndUser returns the caller's non-terminal registration
// for a period, if any. A user may hold at most one at a time.
func (r *RegistrationRepository) GetActiveByPeriodAndUser(ctx context.Context, periodID, userID int64) (*models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations
WHERE period_id = $1 AND user_id = $2 AND status NOT IN ($3, $4, $5)`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, periodID, userID, models.RegistrationRejected, models.RegistrationEnrolled, models.RegistrationExpired); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get active registration: %w", err)
	}
	return &reg, nil
}

// List returns registrations matching the filter, tenant/owner scoped.
func (r *RegistrationRepository) List(ctx context.Context, scope tenantctx.Scope, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	var conditions []string
	var args []interface{}
	appendTenantFilter(&conditions, &args, scope, "school_id")
	appendOwnerFilter(&conditions, &args, scope, "user_id", scope.Role == models.RoleParent)

	if filter.PeriodID != nil {
		args = append(args, *filter.PeriodID)
		conditions = append(conditions, fmt.Sprintf("period_id = $%d", len(args)))
	}
	if filter.PathID != nil {
		args = append(args, *filter.PathID)
		conditions = append(conditions, fmt.Sprintf("path_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	baseQuery := "FROM registrations" + whereClause(conditions)

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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", registrationColumns, baseQuery, pageSize, offset)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return regs, total, nil
}

// ListRankedByPath returns a path's verified registrations ordered by
// (selection_score desc, created_at asc, id asc), the ordering UpdateRankings
// assigns dense ranks over.
func (r *RegistrationRepository) ListRankedByPath(ctx context.Context, pathID int64) ([]models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations
WHERE path_id = $1 AND status = $2
ORDER BY selection_score DESC NULLS LAST, created_at ASC, id ASC`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, pathID, models.RegistrationVerified); err != nil {
		return nil, fmt.Errorf("list ranked registrations: %w", err)
	}
	return regs, nil
}

// ListVerifiedByPeriod returns every verified registration in a period, for
// CalculateScores to compute selection_score over.
func (r *RegistrationRepository) ListVerifiedByPeriod(ctx context.Context, periodID int64) ([]models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations WHERE period_id = $1 AND status = $2`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, periodID, models.RegistrationVerified); err != nil {
		return nil, fmt.Errorf("list verified registrations: %w", err)
	}
	return regs, nil
}

// CountAcceptedByPath returns how many registrations already hold accepted
// status on a path, so a re-run of selection can subtract prior acceptances
// from the path's quota before accepting newly-ranked registrations.
func (r *RegistrationRepository) CountAcceptedByPath(ctx context.Context, tx *sqlx.Tx, pathID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE path_id = $1 AND status = $2`
	var count int
	if err := tx.GetContext(ctx, &count, query, pathID, models.RegistrationAccepted); err != nil {
		return 0, fmt.Errorf("count accepted registrations: %w", err)
	}
	return count, nil
}

// ListPendingByPeriod returns submitted registrations in submission order,
// tenant-scoped ( ListPending).
func (r *RegistrationRepository) ListPendingByPeriod(ctx context.Context, scope tenantctx.Scope, periodID int64, page, pageSize int) ([]models.Registration, int, error) {
	conditions := []string{"period_id = $1", "status = $2"}
	args := []interface{}{periodID, models.RegistrationSubmitted}
	appendTenantFilter(&conditions, &args, scope, "school_id")

	baseQuery := "FROM registrations" + whereClause(conditions)
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY submitted_at ASC LIMIT %d OFFSET %d", registrationColumns, baseQuery, pageSize, offset)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list pending registrations: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pending registrations: %w", err)
	}
	return regs, total, nil
}

// CountsByStatus returns the number of registrations in each status for a
// period, for Verification.Stats and Selection.RankingStatistics.
func (r *RegistrationRepository) CountsByStatus(ctx context.Context, periodID int64) (map[models.RegistrationStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM registrations WHERE period_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("count registrations by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	counts := make(map[models.RegistrationStatus]int)
	for rows.Next() {
		var status models.RegistrationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Create inserts a draft registration. school_id is copied from the period
// by the caller before this call.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	reg.Status = models.RegistrationDraft
	const query = `INSERT INTO registrations (school_id, user_id, period_id, path_id, student_name, student_nisn,
student_birth_date, parent_name, parent_nik, parent_phone, previous_school_name, path_data, status, created_at, updated_at)
VALUES (:school_id, :user_id, :period_id, :path_id, :student_name, :student_nisn,
:student_birth_date, :parent_name, :parent_nik, :parent_phone, :previous_school_name, :path_data, :status, :created_at, :updated_at)
RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, reg)
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&reg.ID); err != nil {
			return fmt.Errorf("scan created registration id: %w", err)
		}
	}
	return nil
}

// UpdateDraft persists edits to a draft registration's snapshot and
// path_id/path_data. Callers verify status = draft before calling this.
func (r *RegistrationRepository) UpdateDraft(ctx context.Context, reg *models.Registration) error {
	reg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET path_id = :path_id, student_name = :student_name, student_nisn = :student_nisn,
student_birth_date = :student_birth_date, parent_name = :parent_name, parent_nik = :parent_nik, parent_phone = :parent_phone,
previous_school_name = :previous_school_name, path_data = :path_data, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("update draft registration: %w", err)
	}
	return nil
}

// LockForTransition acquires a row-level lock on a registration and returns
// its current status, the starting point for any status transition.
func (r *RegistrationRepository) LockForTransition(ctx context.Context, tx *sqlx.Tx, id int64) (models.RegistrationStatus, error) {
	const query = `SELECT status FROM registrations WHERE id = $1 FOR UPDATE`
	var status models.RegistrationStatus
	if err := tx.GetContext(ctx, &status, query, id); err != nil {
		return "", fmt.Errorf("lock registration for transition: %w", err)
	}
	return status, nil
}

// ApplySubmit transitions draft to submitted, stamping the registration
// number minted under the period's lock.
func (r *RegistrationRepository) ApplySubmit(ctx context.Context, tx *sqlx.Tx, id int64, registrationNumber string, submittedAt time.Time) error {
	const query = `UPDATE registrations SET status = $2, registration_number = $3, submitted_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.RegistrationSubmitted, registrationNumber, submittedAt); err != nil {
		return fmt.Errorf("apply submit: %w", err)
	}
	return nil
}

// ApplyVerify transitions submitted to verified, under the caller's
// row-level lock from LockForTransition.
func (r *RegistrationRepository) ApplyVerify(ctx context.Context, tx *sqlx.Tx, id int64, verifiedBy int64, verifiedAt time.Time) error {
	const query = `UPDATE registrations SET status = $2, verified_by = $3, verified_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.RegistrationVerified, verifiedBy, verifiedAt); err != nil {
		return fmt.Errorf("apply verify: %w", err)
	}
	return nil
}

// ApplyReject transitions submitted or verified to rejected, under the
// caller's row-level lock. verifiedBy is nil for system-driven rejections
// (RunSelection's quota_exceeded outcome has no human reviewer).
func (r *RegistrationRepository) ApplyReject(ctx context.Context, tx *sqlx.Tx, id int64, verifiedBy *int64, reason string, at time.Time) error {
	const query = `UPDATE registrations SET status = $2, rejection_reason = $3, verified_by = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.RegistrationRejected, reason, verifiedBy, at); err != nil {
		return fmt.Errorf("apply reject: %w", err)
	}
	return nil
}

// SetScore persists the computed selection_score, independent of status
// transitions, so Selection can score before ranking.
func (r *RegistrationRepository) SetScore(ctx context.Context, tx *sqlx.Tx, id int64, score float64) error {
	const query = `UPDATE registrations SET selection_score = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, score, time.Now().UTC()); err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	return nil
}

// SetRanking persists the computed per-path rank. ranking set implies
// selection_score set ( invariant, enforced by caller ordering).
func (r *RegistrationRepository) SetRanking(ctx context.Context, tx *sqlx.Tx, id int64, ranking int) error {
	const query = `UPDATE registrations SET ranking = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, ranking, time.Now().UTC()); err != nil {
		return fmt.Errorf("set ranking: %w", err)
	}
	return nil
}

// ApplyAccept transitions verified to accepted within the selection tx.
func (r *RegistrationRepository) ApplyAccept(ctx context.Context, tx *sqlx.Tx, id int64) error {
	const query = `UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.RegistrationAccepted, time.Now().UTC()); err != nil {
		return fmt.Errorf("apply accept: %w", err)
	}
	return nil
}

// ApplyEnroll transitions accepted to enrolled within the caller's
// row-locked transaction (transitions serialize per registration).
func (r *RegistrationRepository) ApplyEnroll(ctx context.Context, tx *sqlx.Tx, id int64, at time.Time) error {
	const query = `UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.RegistrationEnrolled, at); err != nil {
		return fmt.Errorf("apply enroll: %w", err)
	}
	return nil
}

// ApplyExpire transitions accepted to expired, for registrants who miss the
// re-enrollment deadline.
func (r *RegistrationRepository) ApplyExpire(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.RegistrationExpired, at); err != nil {
		return fmt.Errorf("apply expire: %w", err)
	}
	return nil
}

// ListAcceptedPastDeadline finds accepted registrations whose period's
// reenrollment_deadline has passed, for the expiry sweep.
func (r *RegistrationRepository) ListAcceptedPastDeadline(ctx context.Context, asOf time.Time) ([]models.Registration, error) {
	const query = `SELECT r.id, r.school_id, r.user_id, r.period_id, r.path_id, r.registration_number,
r.student_name, r.student_nisn, r.student_birth_date, r.parent_name, r.parent_nik, r.parent_phone,
r.previous_school_name, r.path_data, r.selection_score, r.ranking, r.status, r.rejection_reason, r.admin_notes,
r.submitted_at, r.verified_at, r.verified_by, r.created_at, r.updated_at
FROM registrations r JOIN periods p ON p.id = r.period_id
WHERE r.status = $1 AND p.reenrollment_deadline < $2`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, models.RegistrationAccepted, asOf); err != nil {
		return nil, fmt.Errorf("list accepted past deadline: %w", err)
	}
	return regs, nil
}

// FindByRegistrationNumber powers the anonymous public result lookup.
func (r *RegistrationRepository) FindByRegistrationNumber(ctx context.Context, periodID int64, registrationNumber string) (*models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations WHERE period_id = $1 AND registration_number = $2`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, periodID, registrationNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find by registration number: %w", err)
	}
	return &reg, nil
}
