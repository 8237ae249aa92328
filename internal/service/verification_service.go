package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
)

// VerificationStats summarizes registration and document status counts for
// a period ( Stats).
type VerificationStats struct {
	ByRegistrationStatus map[models.RegistrationStatus]int   `json:"by_registration_status"`
	ByDocumentStatus     map[models.VerificationStatus]int   `json:"by_document_status"`
}

// VerificationService implements the Verification component.
type VerificationService struct {
	store         *repository.Store
	registrations *repository.RegistrationRepository
	documents     *repository.DocumentRepository
	audit         *repository.AuditRepository
	logger        *zap.Logger
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(store *repository.Store, registrations *repository.RegistrationRepository, documents *repository.DocumentRepository, audit *repository.AuditRepository, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{store: store, registrations: registrations, documents: documents, audit: audit, logger: logger}
}

// ListPending returns submitted registrations awaiting review, tenant-scoped.
func (s *VerificationService) ListPending(ctx context.Context, scope tenantctx.Scope, periodID int64, page, pageSize int) ([]models.Registration, *models.Pagination, error) {
	regs, total, err := s.registrations.ListPendingByPeriod(ctx, scope, periodID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending registrations")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return regs, models.NewPagination(page, pageSize, total), nil
}

// VerifyRegistration transitions submitted to verified. Individual document
// verification status is not a precondition — the registration-level
// decision is authoritative for selection.
func (s *VerificationService) VerifyRegistration(ctx context.Context, scope tenantctx.Scope, id int64, notes string) (*models.Registration, error) {
	reg, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if _, ok := models.Transition(reg.Status, models.EventVerify); !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}
	now := time.Now().UTC()
	verifiedBy := scope.UserID
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		status, err := s.registrations.LockForTransition(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := models.Transition(status, models.EventVerify); !ok {
			return appErrors.Clone(appErrors.ErrConflict, "registration status changed concurrently")
		}
		return s.registrations.ApplyVerify(ctx, tx, id, verifiedBy, now)
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify registration")
	}
	s.recordAudit(ctx, scope, id, models.AuditActionVerify)
	return s.getScoped(ctx, scope, id)
}

// RejectRegistration transitions submitted to rejected. reason must be at
// least 10 characters.
func (s *VerificationService) RejectRegistration(ctx context.Context, scope tenantctx.Scope, id int64, reason string) (*models.Registration, error) {
	if len(reason) < 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason must be at least 10 characters")
	}
	reg, err := s.getScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if _, ok := models.Transition(reg.Status, models.EventReject); !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}
	now := time.Now().UTC()
	verifiedBy := scope.UserID
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		status, err := s.registrations.LockForTransition(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := models.Transition(status, models.EventReject); !ok {
			return appErrors.Clone(appErrors.ErrConflict, "registration status changed concurrently")
		}
		return s.registrations.ApplyReject(ctx, tx, id, &verifiedBy, reason, now)
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject registration")
	}
	s.recordAudit(ctx, scope, id, models.AuditActionReject)
	return s.getScoped(ctx, scope, id)
}

// VerifyDocument records an advisory per-document decision without
// affecting the registration's status.
func (s *VerificationService) VerifyDocument(ctx context.Context, scope tenantctx.Scope, docID int64, decision models.VerificationStatus, reason *string) error {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	if _, err := s.getScoped(ctx, scope, doc.RegistrationID); err != nil {
		return err
	}
	if err := s.documents.SetVerification(ctx, docID, decision, reason, scope.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set document verification")
	}
	return nil
}

// Stats returns registration and document status counts for a period.
func (s *VerificationService) Stats(ctx context.Context, periodID int64) (*VerificationStats, error) {
	byReg, err := s.registrations.CountsByStatus(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations by status")
	}
	byDoc, err := s.documents.CountsByVerificationStatusForPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents by status")
	}
	return &VerificationStats{ByRegistrationStatus: byReg, ByDocumentStatus: byDoc}, nil
}

func (s *VerificationService) getScoped(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch registration")
	}
	return reg, nil
}

func (s *VerificationService) recordAudit(ctx context.Context, scope tenantctx.Scope, registrationID int64, action models.AuditAction) {
	userID := scope.UserID
	if err := s.audit.Create(ctx, &models.AuditEntry{
		SchoolID:   scope.SchoolID,
		UserID:     &userID,
		EntityType: "registration",
		EntityID:   fmt.Sprintf("%d", registrationID),
		Action:     action,
	}); err != nil {
		s.logger.Warn("failed to record audit entry", zap.Error(err))
	}
}
