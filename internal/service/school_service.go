package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
)

// schoolCacheNamespace scopes every cache key this service touches, so a
// single pattern invalidates all cached listings on any mutating write.
const schoolCacheNamespace = "schools"

// SchoolService manages the platform-wide school catalog, gated on
// PermManageSchools.
type SchoolService struct {
	schools *repository.SchoolRepository
	users   *repository.UserRepository
	cache   *CacheService
	logger  *zap.Logger
}

// NewSchoolService constructs a SchoolService. cache may be a disabled
// CacheService (nil repo) — correctness never depends on its presence.
func NewSchoolService(schools *repository.SchoolRepository, users *repository.UserRepository, cache *CacheService, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{schools: schools, users: users, cache: cache, logger: logger}
}

// Create inserts a school, rejecting a duplicate NPSN.
func (s *SchoolService) Create(ctx context.Context, school *models.School) error {
	if _, err := s.schools.GetByNPSN(ctx, school.NPSN); err == nil {
		return appErrors.Clone(appErrors.ErrDuplicateSchoolNPSN, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check npsn")
	}
	school.Status = models.SchoolStatusActive
	if err := s.schools.Create(ctx, school); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.invalidateListings(ctx)
	return nil
}

func (s *SchoolService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, schoolCacheNamespace+":*")
}

// Get returns a school by id.
func (s *SchoolService) Get(ctx context.Context, id int64) (*models.School, error) {
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch school")
	}
	return school, nil
}

// schoolListResult is what the read-through cache stores per filter key.
type schoolListResult struct {
	Schools []models.School `json:"schools"`
	Total   int             `json:"total"`
}

// List returns schools matching filter with pagination metadata. Reads
// through the CacheService keyed on the filter; its Redis store is shared
// by every API process, not held per process. Correctness never depends on
// the cache being warm.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	cacheKey := fmt.Sprintf("%s:list:%s:%v:%d:%d", schoolCacheNamespace, filter.Search, filter.Status, page, pageSize)
	if s.cache != nil {
		var cached schoolListResult
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached.Schools, models.NewPagination(page, pageSize, cached.Total), nil
		}
	}

	schools, total, err := s.schools.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, schoolListResult{Schools: schools, Total: total}, 0)
	}
	return schools, models.NewPagination(page, pageSize, total), nil
}

// Update persists mutable school fields.
func (s *SchoolService) Update(ctx context.Context, school *models.School) error {
	if _, err := s.Get(ctx, school.ID); err != nil {
		return err
	}
	if err := s.schools.Update(ctx, school); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	s.invalidateListings(ctx)
	return nil
}

// SetStatus activates, suspends, or soft-deletes (status=inactive) a school.
func (s *SchoolService) SetStatus(ctx context.Context, id int64, status models.SchoolStatus) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if status == models.SchoolStatusInactive {
		count, err := s.users.CountActiveSchoolAdmins(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count school admins")
		}
		if count > 0 {
			s.logger.Info("deactivating school with active admins", zap.Int64("school_id", id), zap.Int("admin_count", count))
		}
	}
	if err := s.schools.SetStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set school status")
	}
	s.invalidateListings(ctx)
	return nil
}
