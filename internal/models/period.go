package models

import "time"

// Level is the closed set of school levels a Period targets.
type Level string

const (
	LevelSD  Level = "SD"
	LevelSMP Level = "SMP"
	LevelSMA Level = "SMA"
	LevelSMK Level = "SMK"
)

// PeriodStatus is the closed lifecycle set for an admission Period.
type PeriodStatus string

const (
	PeriodStatusDraft  PeriodStatus = "draft"
	PeriodStatusActive PeriodStatus = "active"
	PeriodStatusClosed PeriodStatus = "closed"
)

// Period is a single admission cycle for one school, year and level.
// (school_id, academic_year, level) is unique; at most one may be active
// at a time.
type Period struct {
	ID                    int64        `db:"id" json:"id"`
	SchoolID              int64        `db:"school_id" json:"school_id"`
	AcademicYear          string       `db:"academic_year" json:"academic_year"`
	Level                 Level        `db:"level" json:"level"`
	StartDate             time.Time    `db:"start_date" json:"start_date"`
	EndDate               time.Time    `db:"end_date" json:"end_date"`
	RegistrationStart     time.Time    `db:"registration_start" json:"registration_start"`
	RegistrationEnd       time.Time    `db:"registration_end" json:"registration_end"`
	AnnouncementDate      *time.Time   `db:"announcement_date" json:"announcement_date,omitempty"`
	ReenrollmentDeadline  time.Time    `db:"reenrollment_deadline" json:"reenrollment_deadline"`
	Status                PeriodStatus `db:"status" json:"status"`
	SelectionRunAt        *time.Time   `db:"selection_run_at" json:"selection_run_at,omitempty"`
	AnnouncedAt           *time.Time   `db:"announced_at" json:"announced_at,omitempty"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updated_at"`
}

// HasRunSelection reports whether RunSelection has executed at least once,
// the precondition Announce checks.
func (p *Period) HasRunSelection() bool {
	return p.SelectionRunAt != nil
}

// IsAnnounced reports whether the public result lookup is answerable.
func (p *Period) IsAnnounced() bool {
	return p.AnnouncedAt != nil
}

// PathType is the closed variant of RegistrationPath kinds; the Scoring
// component dispatches exhaustively over this set.
type PathType string

const (
	PathTypeZonasi            PathType = "zonasi"
	PathTypePrestasi          PathType = "prestasi"
	PathTypeAfirmasi          PathType = "afirmasi"
	PathTypePerpindahanTugas  PathType = "perpindahan_tugas"
)

// RegistrationPath is a quota-bounded admission route within a Period.
type RegistrationPath struct {
	ID            int64    `db:"id" json:"id"`
	PeriodID      int64    `db:"period_id" json:"period_id"`
	PathType      PathType `db:"path_type" json:"path_type"`
	Name          string   `db:"name" json:"name"`
	Quota         int      `db:"quota" json:"quota"`
	Description   string   `db:"description" json:"description"`
	ScoringConfig []byte   `db:"scoring_config" json:"scoring_config"` // JSON, shape matches PathType
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ZonasiScoringConfig is the scoring_config shape for PathTypeZonasi.
type ZonasiScoringConfig struct {
	MaxDistanceKM float64 `json:"max_distance_km"`
	Weight        float64 `json:"weight"`
}

// PrestasiScoringConfig is the scoring_config shape for PathTypePrestasi.
type PrestasiScoringConfig struct {
	RaporWeight       float64 `json:"rapor_weight"`
	AchievementWeight float64 `json:"achievement_weight"`
}

// AfirmasiScoringConfig is the scoring_config shape for PathTypeAfirmasi.
type AfirmasiScoringConfig struct {
	Criteria AfirmasiCriteria `json:"criteria"`
}

// AfirmasiCriteria enumerates the bonus flags recognised by scoring.
type AfirmasiCriteria struct {
	KIPBonus      float64 `json:"kip_bonus"`
	DisabledBonus float64 `json:"disabled_bonus"`
}

// PerpindahanTugasScoringConfig is a marker type: this path type scores
// purely off document completeness, so its config carries no parameters.
type PerpindahanTugasScoringConfig struct{}
