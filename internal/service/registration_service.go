package service

import (
	"context"
	"database/sql"
	"encoding/json"
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

// RegistrationInput carries the mutable fields of a registration create or
// update call, before they are copied onto a models.Registration.
type RegistrationInput struct {
	PathID             int64
	StudentName        string
	StudentNISN        string
	StudentBirthDate   time.Time
	ParentName         string
	ParentNIK          *string
	ParentPhone        string
	PreviousSchoolName *string
	PathData           json.RawMessage
}

// RegistrationService implements the Registration component.
type RegistrationService struct {
	store         *repository.Store
	registrations *repository.RegistrationRepository
	periods       *repository.PeriodRepository
	paths         *repository.PathRepository
	documents     *DocumentService
	logger        *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(store *repository.Store, registrations *repository.RegistrationRepository,
	periods *repository.PeriodRepository, paths *repository.PathRepository, documents *DocumentService, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{store: store, registrations: registrations, periods: periods, paths: paths, documents: documents, logger: logger}
}

var nisnPattern = mustDigitPattern(10)
var nikPattern = mustDigitPattern(16)

func mustDigitPattern(n int) func(string) bool {
	return func(s string) bool {
		if len(s) != n {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
}

// validatePathData structurally checks path_data against the target path's
// PathType by unmarshaling into the exact Go struct that shape implies;
// it never inspects scoring_config.
func validatePathData(pathType models.PathType, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch pathType {
	case models.PathTypeZonasi:
		var data models.ZonasiPathData
		return json.Unmarshal(raw, &data)
	case models.PathTypePrestasi:
		var data models.PrestasiPathData
		return json.Unmarshal(raw, &data)
	case models.PathTypeAfirmasi:
		var data models.AfirmasiPathData
		return json.Unmarshal(raw, &data)
	case models.PathTypePerpindahanTugas:
		var data models.PerpindahanTugasPathData
		return json.Unmarshal(raw, &data)
	default:
		return fmt.Errorf("unknown path type %q", pathType)
	}
}

func (s *RegistrationService) validateInput(ctx context.Context, in RegistrationInput, periodID int64) (*models.RegistrationPath, error) {
	if !nisnPattern(in.StudentNISN) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_nisn must be a 10-digit string")
	}
	if in.ParentNIK != nil && !nikPattern(*in.ParentNIK) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "parent_nik must be a 16-digit string")
	}
	path, err := s.paths.GetByID(ctx, in.PathID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "path not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch path")
	}
	if path.PeriodID != periodID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "path does not belong to this period")
	}
	if err := validatePathData(path.PathType, in.PathData); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "path_data is not valid for the target path type")
	}
	return path, nil
}

// Create inserts a draft registration for the caller. The
// caller must have no other non-terminal registration in the period.
func (s *RegistrationService) Create(ctx context.Context, scope tenantctx.Scope, periodID int64, in RegistrationInput) (*models.Registration, error) {
	period, err := s.periods.GetByIDUnscoped(ctx, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch period")
	}
	if period.Status != models.PeriodStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPeriodNotActive, "")
	}
	now := time.Now().UTC()
	if now.Before(period.RegistrationStart) || now.After(period.RegistrationEnd) {
		return nil, appErrors.Clone(appErrors.ErrPeriodNotActive, "registration window is closed")
	}

	if _, err := s.registrations.GetActiveByPeriodAndUser(ctx, periodID, scope.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRegistration, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing registration")
	}

	if _, err := s.validateInput(ctx, in, periodID); err != nil {
		return nil, err
	}

	reg := &models.Registration{
		SchoolID:           period.SchoolID,
		UserID:             scope.UserID,
		PeriodID:           periodID,
		PathID:             in.PathID,
		StudentName:        in.StudentName,
		StudentNISN:        in.StudentNISN,
		StudentBirthDate:   in.StudentBirthDate,
		ParentName:         in.ParentName,
		ParentNIK:          in.ParentNIK,
		ParentPhone:        in.ParentPhone,
		PreviousSchoolName: in.PreviousSchoolName,
		PathData:           []byte(in.PathData),
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	return reg, nil
}

// Get returns a registration, tenant/owner scoped.
func (s *RegistrationService) Get(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch registration")
	}
	return reg, nil
}

// List returns registrations matching filter, tenant/owner scoped.
func (s *RegistrationService) List(ctx context.Context, scope tenantctx.Scope, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error) {
	regs, total, err := s.registrations.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return regs, models.NewPagination(page, pageSize, total), nil
}

// Update edits a draft registration's snapshot fields and, optionally, its
// path within the same period.
func (s *RegistrationService) Update(ctx context.Context, scope tenantctx.Scope, id int64, in RegistrationInput) (*models.Registration, error) {
	reg, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.RegistrationDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft registrations may be edited")
	}

	if _, err := s.validateInput(ctx, in, reg.PeriodID); err != nil {
		return nil, err
	}

	reg.PathID = in.PathID
	reg.StudentName = in.StudentName
	reg.StudentNISN = in.StudentNISN
	reg.StudentBirthDate = in.StudentBirthDate
	reg.ParentName = in.ParentName
	reg.ParentNIK = in.ParentNIK
	reg.ParentPhone = in.ParentPhone
	reg.PreviousSchoolName = in.PreviousSchoolName
	reg.PathData = []byte(in.PathData)

	if err := s.registrations.UpdateDraft(ctx, reg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update registration")
	}
	return reg, nil
}

// Submit transitions draft to submitted, minting the registration_number
// under the period's row lock.
func (s *RegistrationService) Submit(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Registration, error) {
	reg, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.RegistrationDraft {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}

	period, err := s.periods.GetByIDUnscoped(ctx, reg.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch period")
	}
	if time.Now().UTC().After(period.RegistrationEnd) {
		return nil, appErrors.Clone(appErrors.ErrPeriodNotActive, "registration window has ended")
	}

	path, err := s.paths.GetByID(ctx, reg.PathID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch path")
	}
	complete, missing, err := s.documents.HasRequiredSet(ctx, reg.ID, path.PathType)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, appErrors.Clone(appErrors.ErrMissingDocuments, fmt.Sprintf("missing documents: %v", missing))
	}

	submittedAt := time.Now().UTC()
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		status, err := s.registrations.LockForTransition(ctx, tx, reg.ID)
		if err != nil {
			return err
		}
		if status != models.RegistrationDraft {
			return appErrors.Clone(appErrors.ErrConflict, "registration status changed")
		}
		nextSeq, err := s.periods.LockForSubmit(ctx, tx, reg.PeriodID)
		if err != nil {
			return err
		}
		registrationNumber := fmt.Sprintf("REG-%d-%d-%05d", period.SchoolID, period.ID, nextSeq)
		return s.registrations.ApplySubmit(ctx, tx, reg.ID, registrationNumber, submittedAt)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit registration")
	}
	return s.Get(ctx, scope, id)
}

// Enroll confirms an accepted registration's re-enrollment before the
// period's reenrollment_deadline, transitioning accepted to enrolled. Past
// the deadline the registration is instead swept to expired by
// ExpireStale.
func (s *RegistrationService) Enroll(ctx context.Context, scope tenantctx.Scope, id int64) (*models.Registration, error) {
	reg, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if _, ok := models.Transition(reg.Status, models.EventEnroll); !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "")
	}

	period, err := s.periods.GetByIDUnscoped(ctx, reg.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch period")
	}
	if time.Now().UTC().After(period.ReenrollmentDeadline) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "re-enrollment deadline has passed")
	}

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		status, err := s.registrations.LockForTransition(ctx, tx, reg.ID)
		if err != nil {
			return err
		}
		if _, ok := models.Transition(status, models.EventEnroll); !ok {
			return appErrors.Clone(appErrors.ErrConflict, "registration status changed")
		}
		return s.registrations.ApplyEnroll(ctx, tx, reg.ID, time.Now().UTC())
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll registration")
	}
	return s.Get(ctx, scope, id)
}

// ExpireStale runs the periodic idempotent expiry pass: accepted
// registrations past their period's reenrollment_deadline without an
// enroll transition to expired.
func (s *RegistrationService) ExpireStale(ctx context.Context) (int, error) {
	regs, err := s.registrations.ListAcceptedPastDeadline(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expirable registrations")
	}
	now := time.Now().UTC()
	for _, reg := range regs {
		if err := s.registrations.ApplyExpire(ctx, reg.ID, now); err != nil {
			s.logger.Warn("failed to expire registration", zap.Int64("registration_id", reg.ID), zap.Error(err))
			continue
		}
	}
	return len(regs), nil
}

// FindByRegistrationNumber powers the anonymous public result lookup,
// resolved by AnnouncementService against the announced period.
func (s *RegistrationService) FindByRegistrationNumber(ctx context.Context, periodID int64, registrationNumber string) (*models.Registration, error) {
	reg, err := s.registrations.FindByRegistrationNumber(ctx, periodID, registrationNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch registration")
	}
	return reg, nil
}
