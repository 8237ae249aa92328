package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
)

// PathService manages RegistrationPaths within a Period.
type PathService struct {
	periods *repository.PeriodRepository
	paths   *repository.PathRepository
	logger  *zap.Logger
}

// NewPathService constructs a PathService.
func NewPathService(periods *repository.PeriodRepository, paths *repository.PathRepository, logger *zap.Logger) *PathService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PathService{periods: periods, paths: paths, logger: logger}
}

// Create inserts a path under its period. The period's status is not
// checked.
func (s *PathService) Create(ctx context.Context, path *models.RegistrationPath) error {
	if err := s.paths.Create(ctx, path); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create path")
	}
	return nil
}

// Get returns a path by id.
func (s *PathService) Get(ctx context.Context, id int64) (*models.RegistrationPath, error) {
	path, err := s.paths.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "path not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch path")
	}
	return path, nil
}

// ListByPeriod returns every path configured for a period.
func (s *PathService) ListByPeriod(ctx context.Context, periodID int64) ([]models.RegistrationPath, error) {
	paths, err := s.paths.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list paths")
	}
	return paths, nil
}

// Update changes a path's name and description.
func (s *PathService) Update(ctx context.Context, pathID int64, name, description string) (*models.RegistrationPath, error) {
	path, err := s.Get(ctx, pathID)
	if err != nil {
		return nil, err
	}
	path.Name = name
	path.Description = description
	if err := s.paths.Update(ctx, path); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update path")
	}
	return path, nil
}

// Delete removes a path, refusing to delete one any registration still
// references.
func (s *PathService) Delete(ctx context.Context, pathID int64) error {
	if _, err := s.Get(ctx, pathID); err != nil {
		return err
	}
	count, err := s.paths.CountRegistrations(ctx, pathID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations on path")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "path has registrations and cannot be deleted")
	}
	if err := s.paths.Delete(ctx, pathID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete path")
	}
	return nil
}

// UpdateQuota changes a path's quota, refusing to shrink it below the
// number of registrations already accepted or enrolled.
func (s *PathService) UpdateQuota(ctx context.Context, pathID int64, quota int) error {
	if _, err := s.Get(ctx, pathID); err != nil {
		return err
	}
	accepted, err := s.paths.CountAccepted(ctx, pathID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count accepted registrations")
	}
	if quota < accepted {
		return appErrors.Clone(appErrors.ErrQuotaBelowAccepted, "")
	}
	if err := s.paths.UpdateQuota(ctx, pathID, quota); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update quota")
	}
	return nil
}

// UpdateScoringConfig replaces a path's scoring_config blob. The blob is
// stored as given: neither this method nor PathHandler checks its shape
// against the path's PathType, so a malformed config surfaces only as a
// decode error when Scoring reads it.
func (s *PathService) UpdateScoringConfig(ctx context.Context, pathID int64, config []byte) error {
	if _, err := s.Get(ctx, pathID); err != nil {
		return err
	}
	if err := s.paths.UpdateScoringConfig(ctx, pathID, config); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scoring config")
	}
	return nil
}
