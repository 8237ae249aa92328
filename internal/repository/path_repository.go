package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

// PathRepository provides persistence for RegistrationPaths.
type PathRepository struct {
	db *sqlx.DB
}

// NewPathRepository constructs a PathRepository.
func NewPathRepository(db *sqlx.DB) *PathRepository {
	return &PathRepository{db: db}
}

const pathColumns = `id, period_id, path_type, name, quota, description, scoring_config, created_at, updated_at`

// GetByID returns a path by id.
func (r *PathRepository) GetByID(ctx context.Context, id int64) (*models.RegistrationPath, error) {
	const query = `SELECT ` + pathColumns + ` FROM registration_paths WHERE id = $1`
	var path models.RegistrationPath
	if err := r.db.GetContext(ctx, &path, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get path: %w", err)
	}
	return &path, nil
}

// ListByPeriod returns all paths configured for a period.
func (r *PathRepository) ListByPeriod(ctx context.Context, periodID int64) ([]models.RegistrationPath, error) {
	const query = `SELECT ` + pathColumns + ` FROM registration_paths WHERE period_id = $1 ORDER BY path_type`
	var paths []models.RegistrationPath
	if err := r.db.SelectContext(ctx, &paths, query, periodID); err != nil {
		return nil, fmt.Errorf("list paths by period: %w", err)
	}
	return paths, nil
}

// Create inserts a path.
func (r *PathRepository) Create(ctx context.Context, path *models.RegistrationPath) error {
	now := time.Now().UTC()
	path.CreatedAt = now
	path.UpdatedAt = now
	const query = `INSERT INTO registration_paths (period_id, path_type, name, quota, description, scoring_config, created_at, updated_at)
VALUES (:period_id, :path_type, :name, :quota, :description, :scoring_config, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, path)
	if err != nil {
		return fmt.Errorf("create path: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&path.ID); err != nil {
			return fmt.Errorf("scan created path id: %w", err)
		}
	}
	return nil
}

// CountAccepted returns how many registrations on this path already hold
// accepted or later status (accepted, enrolled). Used to reject a quota
// shrink below the current accepted count.
func (r *PathRepository) CountAccepted(ctx context.Context, pathID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE path_id = $1 AND status IN ($2, $3)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, pathID, models.RegistrationAccepted, models.RegistrationEnrolled); err != nil {
		return 0, fmt.Errorf("count accepted on path: %w", err)
	}
	return count, nil
}

// UpdateQuota persists a new quota value. Callers must first verify the new
// quota is not below the currently accepted count.
func (r *PathRepository) UpdateQuota(ctx context.Context, pathID int64, quota int) error {
	const query = `UPDATE registration_paths SET quota = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, pathID, quota, time.Now().UTC()); err != nil {
		return fmt.Errorf("update path quota: %w", err)
	}
	return nil
}

// Update persists a path's editable fields (name and description; quota
// and scoring_config go through their own dedicated setters, which
// enforce quota-shrink and scoring-shape invariants Update does not).
func (r *PathRepository) Update(ctx context.Context, path *models.RegistrationPath) error {
	const query = `UPDATE registration_paths SET name = $2, description = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, path.ID, path.Name, path.Description, time.Now().UTC()); err != nil {
		return fmt.Errorf("update path: %w", err)
	}
	return nil
}

// Delete removes a path outright. Callers must first verify no
// registrations reference it.
func (r *PathRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM registration_paths WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete path: %w", err)
	}
	return nil
}

// CountRegistrations returns how many registrations, of any status,
// reference this path — a nonzero count blocks deletion.
func (r *PathRepository) CountRegistrations(ctx context.Context, pathID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE path_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, pathID); err != nil {
		return 0, fmt.Errorf("count registrations on path: %w", err)
	}
	return count, nil
}

// UpdateScoringConfig persists a new scoring configuration blob.
func (r *PathRepository) UpdateScoringConfig(ctx context.Context, pathID int64, config []byte) error {
	const query = `UPDATE registration_paths SET scoring_config = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, pathID, config, time.Now().UTC()); err != nil {
		return fmt.Errorf("update path scoring config: %w", err)
	}
	return nil
}
