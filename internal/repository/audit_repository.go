package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// AuditRepository persists the append-only AuditEntry trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry. Entries are never updated or deleted.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
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

// ListByEntity returns the audit trail for a single entity, newest first,
// scoped to the caller's tenant.
func (r *AuditRepository) ListByEntity(ctx context.Context, scope tenantctx.Scope, entityType, entityID string) ([]models.AuditEntry, error) {
	conditions := []string{"entity_type = $1", "entity_id = $2"}
	args := []interface{}{entityType, entityID}
	appendTenantFilter(&conditions, &args, scope, "school_id")

	query := `SELECT id, school_id, user_id, entity_type, entity_id, action, old_value, new_value, ip_address, user_agent, created_at
FROM audit_entries` + whereClause(conditions) + ` ORDER BY created_at DESC`

	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
