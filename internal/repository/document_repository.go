package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

// DocumentRepository provides persistence for uploaded Documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, registration_id, document_type, file_url, file_name, file_size, mime_type,
verification_status, rejection_reason, verified_by, verified_at, orphaned_at, created_at, updated_at`

// GetByID returns a document by id.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// ListActiveByRegistration returns the non-orphaned documents attached to a
// registration, one row per document_type at most.
func (r *DocumentRepository) ListActiveByRegistration(ctx context.Context, registrationID int64) ([]models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE registration_id = $1 AND orphaned_at IS NULL ORDER BY created_at`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, registrationID); err != nil {
		return nil, fmt.Errorf("list active documents: %w", err)
	}
	return docs, nil
}

// FindActiveByType returns the current active document of a type on a
// registration, if any: only one active document per (registration,
// document_type) may be active; AttachDocument replaces rather than
// duplicates.
func (r *DocumentRepository) FindActiveByType(ctx context.Context, registrationID int64, docType models.DocumentType) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE registration_id = $1 AND document_type = $2 AND orphaned_at IS NULL`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, registrationID, docType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active document by type: %w", err)
	}
	return &doc, nil
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.VerificationStatus = models.DocumentPending
	const query = `INSERT INTO documents (registration_id, document_type, file_url, file_name, file_size, mime_type,
verification_status, created_at, updated_at)
VALUES (:registration_id, :document_type, :file_url, :file_name, :file_size, :mime_type,
:verification_status, :created_at, :updated_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&doc.ID); err != nil {
			return fmt.Errorf("scan created document id: %w", err)
		}
	}
	return nil
}

// OrphanWithinTx marks a document orphaned, keeping the row (and its file)
// for audit while it no longer counts toward document-set completeness.
// Used when a new upload of the same type replaces it.
func (r *DocumentRepository) OrphanWithinTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	const query = `UPDATE documents SET orphaned_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("orphan document: %w", err)
	}
	return nil
}

// CreateWithinTx inserts a document as part of a replace-on-same-type
// transaction alongside OrphanWithinTx.
func (r *DocumentRepository) CreateWithinTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.VerificationStatus = models.DocumentPending
	const query = `INSERT INTO documents (registration_id, document_type, file_url, file_name, file_size, mime_type,
verification_status, created_at, updated_at)
VALUES (:registration_id, :document_type, :file_url, :file_name, :file_size, :mime_type,
:verification_status, :created_at, :updated_at) RETURNING id`
	rows, err := tx.NamedQuery(query, doc)
	if err != nil {
		return fmt.Errorf("create document within tx: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&doc.ID); err != nil {
			return fmt.Errorf("scan created document id: %w", err)
		}
	}
	return nil
}

// SetVerification records a verifier's per-document decision. This is
// advisory: it never gates the registration state machine. The status
// feeds the perpindahan_tugas score and the period's verification stats;
// the required-document-set check at Submit counts active documents of
// any status.
func (r *DocumentRepository) SetVerification(ctx context.Context, id int64, status models.VerificationStatus, reason *string, verifiedBy int64) error {
	now := time.Now().UTC()
	const query = `UPDATE documents SET verification_status = $2, rejection_reason = $3, verified_by = $4, verified_at = $5, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reason, verifiedBy, now); err != nil {
		return fmt.Errorf("set document verification: %w", err)
	}
	return nil
}

// CountApprovedByTypes returns how many of the given types have an approved,
// active document attached.
func (r *DocumentRepository) CountApprovedByTypes(ctx context.Context, registrationID int64, types []models.DocumentType) (int, error) {
	if len(types) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM documents WHERE registration_id = ? AND orphaned_at IS NULL AND verification_status = ? AND document_type IN (?)`, registrationID, models.DocumentApproved, types)
	if err != nil {
		return 0, fmt.Errorf("build count approved query: %w", err)
	}
	query = r.db.Rebind(query)
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count approved documents: %w", err)
	}
	return count, nil
}

// CountsByVerificationStatusForPeriod returns the number of active documents
// in each verification_status across a period's registrations, for
// Verification.Stats.
func (r *DocumentRepository) CountsByVerificationStatusForPeriod(ctx context.Context, periodID int64) (map[models.VerificationStatus]int, error) {
	const query = `SELECT d.verification_status, COUNT(*) AS count
FROM documents d JOIN registrations r ON r.id = d.registration_id
WHERE r.period_id = $1 AND d.orphaned_at IS NULL
GROUP BY d.verification_status`
	rows, err := r.db.QueryContext(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("count documents by verification status: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	counts := make(map[models.VerificationStatus]int)
	for rows.Next() {
		var status models.VerificationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan verification status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
