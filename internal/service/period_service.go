package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
)

// PeriodService manages the lifecycle of admission Periods.
type PeriodService struct {
	store   *repository.Store
	periods *repository.PeriodRepository
	logger  *zap.Logger
}

// NewPeriodService constructs a PeriodService.
func NewPeriodService(store *repository.Store, periods *repository.PeriodRepository, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{store: store, periods: periods, logger: logger}
}

// Create inserts a period in draft status.
func (s *PeriodService) Create(ctx context.Context, period *models.Period) error {
	period.Status = models.PeriodStatusDraft
	if err := s.periods.Create(ctx, period); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period")
	}
	return nil
}

// Get returns a period, tenant-scoped.
func (s *PeriodService) Get(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Period, error) {
	period, err := s.periods.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch period")
	}
	return period, nil
}

// List returns periods for the caller's tenant with pagination.
func (s *PeriodService) List(ctx context.Context, scope tenantctx.Scope, page, pageSize int) ([]models.Period, *models.Pagination, error) {
	periods, total, err := s.periods.List(ctx, scope, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return periods, models.NewPagination(page, pageSize, total), nil
}

// Update persists mutable period fields on a draft period.
func (s *PeriodService) Update(ctx context.Context, scope tenantctx.Scope, period *models.Period) error {
	existing, err := s.Get(ctx, scope, period.ID)
	if err != nil {
		return err
	}
	if existing.Status != models.PeriodStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft periods may be edited")
	}
	if err := s.periods.Update(ctx, period); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	return nil
}

// Delete removes a draft period with no non-draft registrations.
func (s *PeriodService) Delete(ctx context.Context, scope tenantctx.Scope, id int64) error {
	existing, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if existing.Status != models.PeriodStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft periods may be deleted")
	}
	count, err := s.periods.CountNonDraftRegistrations(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "period has non-draft registrations")
	}
	if err := s.periods.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete period")
	}
	return nil
}

// Activate transitions a period to active, atomically closing any other
// active period sharing (school_id, academic_year, level) — at most one
// period per key may be active at a time.
func (s *PeriodService) Activate(ctx context.Context, scope tenantctx.Scope, id int64) error {
	period, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if period.Status == models.PeriodStatusClosed {
		return appErrors.Clone(appErrors.ErrConflict, "closed periods cannot be reactivated")
	}
	return s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.periods.ActivateWithinTx(ctx, tx, period)
	})
}

// Close transitions an active period to closed, halting new submissions.
func (s *PeriodService) Close(ctx context.Context, scope tenantctx.Scope, id int64) error {
	period, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if period.Status != models.PeriodStatusActive {
		return appErrors.Clone(appErrors.ErrConflict, "only active periods may be closed")
	}
	if err := s.periods.SetStatus(ctx, id, models.PeriodStatusClosed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close period")
	}
	return nil
}
