package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

// SchoolRepository provides persistence for the platform-wide School catalog.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

const schoolColumns = `id, name, npsn, code, address, phone, email, status, created_at, updated_at`

// GetByID returns a school by id, regardless of tenant (super_admin scope
// only; callers enforce authorization before calling this).
func (r *SchoolRepository) GetByID(ctx context.Context, id int64) (*models.School, error) {
	const query = `SELECT ` + schoolColumns + ` FROM schools WHERE id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get school: %w", err)
	}
	return &school, nil
}

// GetByNPSN returns a school by its unique NPSN.
func (r *SchoolRepository) GetByNPSN(ctx context.Context, npsn string) (*models.School, error) {
	const query = `SELECT ` + schoolColumns + ` FROM schools WHERE npsn = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, npsn); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get school by npsn: %w", err)
	}
	return &school, nil
}

// List returns schools matching the filter with total count.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args), len(args)))
	}

	baseQuery := "FROM schools" + whereClause(conditions)

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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", schoolColumns, baseQuery, pageSize, offset)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

// Create inserts a school and populates its generated ID and timestamps.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now
	const query = `INSERT INTO schools (name, npsn, code, address, phone, email, status, created_at, updated_at)
VALUES (:name, :npsn, :code, :address, :phone, :email, :status, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, school)
	if err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&school.ID); err != nil {
			return fmt.Errorf("scan created school id: %w", err)
		}
	}
	return nil
}

// Update persists mutable fields of a school.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, address = :address, phone = :phone, email = :email, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// SetStatus updates only the status column, used by activate/soft-delete.
func (r *SchoolRepository) SetStatus(ctx context.Context, id int64, status models.SchoolStatus) error {
	const query = `UPDATE schools SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set school status: %w", err)
	}
	return nil
}
