package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/scoring"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/notify"
)

const rejectionQuotaExceeded = "quota_exceeded"

// PathSelectionResult summarizes one path's outcome from RunSelection.
type PathSelectionResult struct {
	PathID         int64 `json:"path_id"`
	Accepted       int   `json:"accepted"`
	Rejected       int   `json:"rejected"`
	RemainingQuota int   `json:"remaining_quota"`
}

// SelectionSummary is RunSelection's return value.
type SelectionSummary struct {
	Paths          []PathSelectionResult `json:"paths"`
	TotalAccepted  int                    `json:"total_accepted"`
	TotalRejected  int                    `json:"total_rejected"`
}

// PathRankingStats summarizes selection_score distribution per path
// (min/max/avg/count).
type PathRankingStats struct {
	PathID    int64   `json:"path_id"`
	Count     int     `json:"count"`
	MinScore  float64 `json:"min_score"`
	MaxScore  float64 `json:"max_score"`
	AvgScore  float64 `json:"avg_score"`
}

// CheckResultView is the public/anonymous result-lookup response:
// exactly these fields, nothing else of the registration.
type CheckResultView struct {
	RegistrationNumber   string     `json:"number"`
	StudentName          string     `json:"student_name"`
	StudentNISN          string     `json:"nisn"`
	PathName             string     `json:"path_name"`
	SelectionScore       *float64   `json:"selection_score,omitempty"`
	Ranking              *int       `json:"ranking,omitempty"`
	Status               string     `json:"status"`
	RejectionReason      *string    `json:"rejection_reason,omitempty"`
	AnnouncementDate     *time.Time `json:"announcement_date,omitempty"`
	ReenrollmentDeadline time.Time  `json:"reenrollment_deadline"`
}

// SelectionService orchestrates scoring and announcement: CalculateScores,
// UpdateRankings, RunSelection, Announce, CheckResult, plus the
// supplemental RankingStatistics read model.
type SelectionService struct {
	store         *repository.Store
	registrations *repository.RegistrationRepository
	periods       *repository.PeriodRepository
	paths         *repository.PathRepository
	documents     *repository.DocumentRepository
	notifier      notify.Sink
	logger        *zap.Logger
}

// NewSelectionService constructs a SelectionService.
func NewSelectionService(store *repository.Store, registrations *repository.RegistrationRepository, periods *repository.PeriodRepository,
	paths *repository.PathRepository, documents *repository.DocumentRepository, notifier notify.Sink, logger *zap.Logger) *SelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionService{store: store, registrations: registrations, periods: periods, paths: paths, documents: documents, notifier: notifier, logger: logger}
}

// CalculateScores computes selection_score for every verified registration
// in a period. Idempotent: re-running with unchanged inputs reproduces the
// same scores.
func (s *SelectionService) CalculateScores(ctx context.Context, periodID int64) (int, error) {
	regs, err := s.registrations.ListVerifiedByPeriod(ctx, periodID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verified registrations")
	}

	pathCache := make(map[int64]*models.RegistrationPath)
	count := 0
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, reg := range regs {
			path, ok := pathCache[reg.PathID]
			if !ok {
				fetched, err := s.paths.GetByID(ctx, reg.PathID)
				if err != nil {
					return err
				}
				path = fetched
				pathCache[reg.PathID] = path
			}

			var transferStatus *models.VerificationStatus
			if path.PathType == models.PathTypePerpindahanTugas {
				doc, err := s.documents.FindActiveByType(ctx, reg.ID, models.DocumentSuratKeteranganPindah)
				if err != nil && !errors.Is(err, sql.ErrNoRows) {
					return err
				}
				if doc != nil {
					transferStatus = &doc.VerificationStatus
				}
			}

			score, err := scoring.Score(scoring.Input{Registration: &reg, Path: path, TransferDocStatus: transferStatus})
			if err != nil {
				return err
			}
			if err := s.registrations.SetScore(ctx, tx, reg.ID, score); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to calculate scores")
	}
	return count, nil
}

// UpdateRankings assigns a dense per-path ranking over verified
// registrations ordered by (selection_score desc, created_at asc, id asc).
func (s *SelectionService) UpdateRankings(ctx context.Context, periodID int64) (int, error) {
	paths, err := s.paths.ListByPeriod(ctx, periodID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list paths")
	}

	total := 0
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.periods.LockForSelection(ctx, tx, periodID); err != nil {
			return err
		}
		for _, path := range paths {
			regs, err := s.registrations.ListRankedByPath(ctx, path.ID)
			if err != nil {
				return err
			}
			for i, reg := range regs {
				if err := s.registrations.SetRanking(ctx, tx, reg.ID, i+1); err != nil {
					return err
				}
				total++
			}
		}
		return nil
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rankings")
	}
	return total, nil
}

// RunSelection accepts registrations within quota and rejects the
// remainder, per path. Precondition: period is active. Idempotent unless
// scores or verifications changed since the last run, in which case a
// non-force call is refused with Conflict. Holds a period-level lock for the
// duration of the transaction, so concurrent calls for the same period
// serialize. A forced re-run subtracts registrations already accepted on a
// path from its quota before accepting newly-ranked ones, so repeated runs
// never push total accepted past the path's quota.
func (s *SelectionService) RunSelection(ctx context.Context, periodID int64, force bool) (*SelectionSummary, error) {
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

	alreadyRun := period.HasRunSelection()
	if alreadyRun && !force {
		verifiedRemaining, err := s.registrations.ListVerifiedByPeriod(ctx, periodID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for pending changes")
		}
		if len(verifiedRemaining) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "selection outcomes would change; retry with force=true")
		}
	}

	paths, err := s.paths.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list paths")
	}

	summary := &SelectionSummary{}
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.periods.LockForSelection(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if locked.Status != models.PeriodStatusActive {
			return appErrors.Clone(appErrors.ErrPeriodNotActive, "")
		}
		if locked.HasRunSelection() && !force {
			verifiedRemaining, err := s.registrations.ListVerifiedByPeriod(ctx, periodID)
			if err != nil {
				return err
			}
			if len(verifiedRemaining) > 0 {
				return appErrors.Clone(appErrors.ErrConflict, "selection outcomes would change; retry with force=true")
			}
		}

		for _, path := range paths {
			regs, err := s.registrations.ListRankedByPath(ctx, path.ID)
			if err != nil {
				return err
			}
			acceptedCount, err := s.registrations.CountAcceptedByPath(ctx, tx, path.ID)
			if err != nil {
				return err
			}
			remaining := path.Quota - acceptedCount
			if remaining < 0 {
				remaining = 0
			}
			result := PathSelectionResult{PathID: path.ID}
			for _, reg := range regs {
				rank := 0
				if reg.Ranking != nil {
					rank = *reg.Ranking
				}
				if rank > 0 && rank <= remaining {
					if err := s.registrations.ApplyAccept(ctx, tx, reg.ID); err != nil {
						return err
					}
					result.Accepted++
				} else {
					reason := rejectionQuotaExceeded
					if err := s.registrations.ApplyReject(ctx, tx, reg.ID, nil, reason, time.Now().UTC()); err != nil {
						return err
					}
					result.Rejected++
				}
			}
			result.RemainingQuota = remaining - result.Accepted
			if result.RemainingQuota < 0 {
				result.RemainingQuota = 0
			}
			summary.Paths = append(summary.Paths, result)
			summary.TotalAccepted += result.Accepted
			summary.TotalRejected += result.Rejected
		}
		return s.periods.MarkSelectionRun(ctx, tx, periodID, time.Now().UTC())
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to run selection")
	}
	return summary, nil
}

// Announce marks the period's announcement date, notifies every accepted
// and rejected registration's parent, and opens the public result lookup.
// Idempotent: re-announcing does not re-emit notifications or overwrite an
// already-set announcement_date.
func (s *SelectionService) Announce(ctx context.Context, periodID int64) error {
	period, err := s.periods.GetByIDUnscoped(ctx, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch period")
	}
	if !period.HasRunSelection() {
		return appErrors.Clone(appErrors.ErrConflict, "selection has not been run for this period")
	}
	if period.IsAnnounced() {
		return nil
	}

	now := time.Now().UTC()
	if err := s.periods.MarkAnnounced(ctx, periodID, now, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark period announced")
	}

	filter := models.RegistrationFilter{PeriodID: &periodID, PageSize: 100}
	accepted := models.RegistrationAccepted
	filter.Status = &accepted
	s.emitAll(ctx, period.SchoolID, filter, notify.EventRegistrationAccepted)

	rejected := models.RegistrationRejected
	filter.Status = &rejected
	s.emitAll(ctx, period.SchoolID, filter, notify.EventRegistrationRejected)

	return nil
}

func (s *SelectionService) emitAll(ctx context.Context, schoolID int64, filter models.RegistrationFilter, eventType string) {
	for page := 1; ; page++ {
		filter.Page = page
		regs, total, err := s.registrations.List(ctx, tenantctx.Scope{Role: models.RoleSuperAdmin}, filter)
		if err != nil {
			s.logger.Warn("failed to list registrations for announcement", zap.Error(err))
			return
		}
		for _, reg := range regs {
			s.notifier.Emit(ctx, notify.Event{
				Type:           eventType,
				SchoolID:       schoolID,
				RegistrationID: reg.ID,
				Subject:        "PPDB selection result",
				OccurredAt:     time.Now().UTC(),
			})
		}
		if page*filter.PageSize >= total || len(regs) == 0 {
			return
		}
	}
}

// CheckResult is the public/anonymous result lookup. Only answerable once
// the period has announced; NISN is compared in constant time.
func (s *SelectionService) CheckResult(ctx context.Context, periodID int64, registrationNumber, nisn string) (*CheckResultView, error) {
	period, err := s.periods.GetByIDUnscoped(ctx, periodID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not found")
	}
	if !period.IsAnnounced() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not found")
	}

	reg, err := s.registrations.FindByRegistrationNumber(ctx, periodID, registrationNumber)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not found")
	}
	if subtle.ConstantTimeCompare([]byte(reg.StudentNISN), []byte(nisn)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not found")
	}

	path, err := s.paths.GetByID(ctx, reg.PathID)
	pathName := ""
	if err == nil {
		pathName = path.Name
	}

	number := ""
	if reg.RegistrationNumber != nil {
		number = *reg.RegistrationNumber
	}
	return &CheckResultView{
		RegistrationNumber:   number,
		StudentName:          reg.StudentName,
		StudentNISN:          reg.StudentNISN,
		PathName:             pathName,
		SelectionScore:       reg.SelectionScore,
		Ranking:              reg.Ranking,
		Status:               string(reg.Status),
		RejectionReason:      reg.RejectionReason,
		AnnouncementDate:     period.AnnouncementDate,
		ReenrollmentDeadline: period.ReenrollmentDeadline,
	}, nil
}

// RankingStatistics returns per-path min/max/avg/count over ranked
// registrations.
func (s *SelectionService) RankingStatistics(ctx context.Context, periodID int64) ([]PathRankingStats, error) {
	paths, err := s.paths.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list paths")
	}

	var stats []PathRankingStats
	for _, path := range paths {
		regs, err := s.registrations.ListRankedByPath(ctx, path.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ranked registrations")
		}
		scored := make([]float64, 0, len(regs))
		for _, reg := range regs {
			if reg.SelectionScore != nil {
				scored = append(scored, *reg.SelectionScore)
			}
		}
		if len(scored) == 0 {
			stats = append(stats, PathRankingStats{PathID: path.ID})
			continue
		}
		minV, maxV, sum := scored[0], scored[0], 0.0
		for _, v := range scored {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			sum += v
		}
		stats = append(stats, PathRankingStats{
			PathID:   path.ID,
			Count:    len(scored),
			MinScore: minV,
			MaxScore: maxV,
			AvgScore: sum / float64(len(scored)),
		})
	}
	return stats, nil
}
