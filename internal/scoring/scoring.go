// Package scoring implements the pure per-path scoring formulas. Score
// never performs I/O; it reads only the registration's path_data and the
// path's scoring_config. It is an exhaustive pattern-match dispatch over
// models.PathType; adding a path type also requires its models types,
// a branch in the registration service's path_data check, and an entry
// in models.RequiredDocumentSets.
package scoring

import (
	"encoding/json"
	"math"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

// TieTolerance is the absolute tolerance used to compare two scores for
// ranking purposes.
const TieTolerance = 1e-6

// ScoresEqual reports whether a and b are equal within TieTolerance.
func ScoresEqual(a, b float64) bool {
	return math.Abs(a-b) <= TieTolerance
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// round4 rounds to four decimal places (round-half-to-even would also
// satisfy this; plain rounding suffices at 4-decimal granularity for
// admission scores).
func round4(v float64) float64 {
	const factor = 10000
	return math.Round(v*factor) / factor
}

// Input bundles everything Score needs so it never performs I/O itself.
// TransferDocStatus is only consulted for PathTypePerpindahanTugas, where
// the formula is document-completeness driven rather than path_data driven
//; the caller resolves the document's verification status
// beforehand.
type Input struct {
	Registration      *models.Registration
	Path              *models.RegistrationPath
	TransferDocStatus *models.VerificationStatus
}

// Score dispatches on path.PathType and computes the registration's
// selection_score. path_data and scoring_config are decoded lazily per
// branch since their shape depends on the path type.
func Score(in Input) (float64, error) {
	switch in.Path.PathType {
	case models.PathTypeZonasi:
		return scoreZonasi(in.Registration, in.Path)
	case models.PathTypePrestasi:
		return scorePrestasi(in.Registration, in.Path)
	case models.PathTypeAfirmasi:
		return scoreAfirmasi(in.Registration, in.Path)
	case models.PathTypePerpindahanTugas:
		return scorePerpindahanTugas(in.TransferDocStatus)
	default:
		return 0, errUnknownPathType(string(in.Path.PathType))
	}
}

type unknownPathTypeError string

func (e unknownPathTypeError) Error() string { return "scoring: unknown path type " + string(e) }

func errUnknownPathType(pathType string) error { return unknownPathTypeError(pathType) }

func scoreZonasi(reg *models.Registration, path *models.RegistrationPath) (float64, error) {
	var cfg models.ZonasiScoringConfig
	if err := json.Unmarshal(path.ScoringConfig, &cfg); err != nil {
		return 0, err
	}
	var data models.ZonasiPathData
	if len(reg.PathData) > 0 {
		if err := json.Unmarshal(reg.PathData, &data); err != nil {
			return 0, err
		}
	}
	if data.DistanceKM == nil || cfg.MaxDistanceKM <= 0 {
		return 0, nil
	}
	raw := math.Max(0, 1-*data.DistanceKM/cfg.MaxDistanceKM) * 100 * cfg.Weight
	return round4(clamp(raw)), nil
}

func scorePrestasi(reg *models.Registration, path *models.RegistrationPath) (float64, error) {
	var cfg models.PrestasiScoringConfig
	if err := json.Unmarshal(path.ScoringConfig, &cfg); err != nil {
		return 0, err
	}
	var data models.PrestasiPathData
	if len(reg.PathData) > 0 {
		if err := json.Unmarshal(reg.PathData, &data); err != nil {
			return 0, err
		}
	}
	var raporAvg, achievement float64
	if data.RaporAverage != nil {
		raporAvg = *data.RaporAverage
	}
	if data.AchievementPoints != nil {
		achievement = *data.AchievementPoints
	}
	raw := cfg.RaporWeight*raporAvg + cfg.AchievementWeight*math.Min(100, achievement)
	return round4(clamp(raw)), nil
}

func scoreAfirmasi(reg *models.Registration, path *models.RegistrationPath) (float64, error) {
	var cfg models.AfirmasiScoringConfig
	if err := json.Unmarshal(path.ScoringConfig, &cfg); err != nil {
		return 0, err
	}
	var data models.AfirmasiPathData
	if len(reg.PathData) > 0 {
		if err := json.Unmarshal(reg.PathData, &data); err != nil {
			return 0, err
		}
	}
	raw := 60.0
	if data.KIP {
		raw += nonZero(cfg.Criteria.KIPBonus, 30)
	}
	if data.Disabled {
		raw += nonZero(cfg.Criteria.DisabledBonus, 10)
	}
	return round4(clamp(raw)), nil
}

func nonZero(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

// scorePerpindahanTugas is document-driven: 100 if surat_keterangan_pindah
// is present and approved, 50 if present but pending, else 0.
func scorePerpindahanTugas(status *models.VerificationStatus) (float64, error) {
	if status == nil {
		return 0, nil
	}
	switch *status {
	case models.DocumentApproved:
		return 100, nil
	case models.DocumentPending:
		return 50, nil
	default:
		return 0, nil
	}
}
