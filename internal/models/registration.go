package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// RegistrationStatus is the closed state-machine set for a Registration.
// Every mutation of Status must go through Transition.
type RegistrationStatus string

const (
	RegistrationDraft     RegistrationStatus = "draft"
	RegistrationSubmitted RegistrationStatus = "submitted"
	RegistrationVerified  RegistrationStatus = "verified"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationAccepted  RegistrationStatus = "accepted"
	RegistrationEnrolled  RegistrationStatus = "enrolled"
	RegistrationExpired   RegistrationStatus = "expired"
)

// RegistrationEvent is the closed set of transition triggers.
type RegistrationEvent string

const (
	EventSubmit       RegistrationEvent = "submit"
	EventVerify       RegistrationEvent = "verify"
	EventReject       RegistrationEvent = "reject"
	EventAccept       RegistrationEvent = "accept"
	EventEnroll       RegistrationEvent = "enroll"
	EventExpire       RegistrationEvent = "expire"
)

// terminal states admit no further transition.
func IsTerminal(s RegistrationStatus) bool {
	switch s {
	case RegistrationRejected, RegistrationEnrolled, RegistrationExpired:
		return true
	default:
		return false
	}
}

// transitions encodes the state diagram verbatim.
var transitions = map[RegistrationStatus]map[RegistrationEvent]RegistrationStatus{
	RegistrationDraft: {
		EventSubmit: RegistrationSubmitted,
	},
	RegistrationSubmitted: {
		EventVerify: RegistrationVerified,
		EventReject: RegistrationRejected,
	},
	RegistrationVerified: {
		EventAccept: RegistrationAccepted,
		EventReject: RegistrationRejected,
	},
	RegistrationAccepted: {
		EventEnroll: RegistrationEnrolled,
		EventExpire: RegistrationExpired,
	},
}

// Transition computes the target state for (from, event) or reports that
// the transition is not defined. Ad-hoc status writes bypassing this
// function are forbidden by design.
func Transition(from RegistrationStatus, event RegistrationEvent) (RegistrationStatus, bool) {
	byEvent, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := byEvent[event]
	return to, ok
}

// Registration is a single applicant's submission to one path of one period.
type Registration struct {
	ID                 int64              `db:"id" json:"id"`
	SchoolID           int64              `db:"school_id" json:"school_id"`
	UserID             int64              `db:"user_id" json:"user_id"`
	PeriodID           int64              `db:"period_id" json:"period_id"`
	PathID             int64              `db:"path_id" json:"path_id"`
	RegistrationNumber *string            `db:"registration_number" json:"registration_number,omitempty"`
	StudentName        string             `db:"student_name" json:"student_name"`
	StudentNISN        string             `db:"student_nisn" json:"student_nisn"`
	StudentBirthDate   time.Time          `db:"student_birth_date" json:"student_birth_date"`
	ParentName         string             `db:"parent_name" json:"parent_name"`
	ParentNIK          *string            `db:"parent_nik" json:"parent_nik,omitempty"`
	ParentPhone        string             `db:"parent_phone" json:"parent_phone"`
	PreviousSchoolName *string            `db:"previous_school_name" json:"previous_school_name,omitempty"`
	PathData           []byte             `db:"path_data" json:"path_data"` // JSON, consumed only by Scoring
	SelectionScore     *float64           `db:"selection_score" json:"selection_score,omitempty"`
	Ranking            *int               `db:"ranking" json:"ranking,omitempty"`
	Status             RegistrationStatus `db:"status" json:"status"`
	RejectionReason    *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AdminNotes         *string            `db:"admin_notes" json:"admin_notes,omitempty"`
	SubmittedAt        *time.Time         `db:"submitted_at" json:"submitted_at,omitempty"`
	VerifiedAt         *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	VerifiedBy         *int64             `db:"verified_by" json:"verified_by,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationFilter captures list filtering for the Registration component.
type RegistrationFilter struct {
	SchoolID *int64
	UserID   *int64
	PeriodID *int64
	PathID   *int64
	Status   *RegistrationStatus
	Page     int
	PageSize int
}

// Path-data payloads. Structurally validated against the target path's
// PathType before Create/Update accept them.

// ZonasiPathData is the path_data shape for PathTypeZonasi.
type ZonasiPathData struct {
	DistanceKM *float64 `json:"distance_km"`
}

// PrestasiPathData is the path_data shape for PathTypePrestasi.
type PrestasiPathData struct {
	RaporAverage      *float64 `json:"rapor_average"`
	AchievementPoints *float64 `json:"achievement_points"`
}

// AfirmasiPathData is the path_data shape for PathTypeAfirmasi.
type AfirmasiPathData struct {
	KIP      bool `json:"kip"`
	Disabled bool `json:"disabled"`
}

// PerpindahanTugasPathData is the path_data shape for PathTypePerpindahanTugas.
// It carries no scoring-relevant fields; scoring reads document state instead.
type PerpindahanTugasPathData struct{}

// RegistrationNumberSeq mints the per-period submission sequence used to
// build registration_number = REG-{school_id}-{period_id}-{seq5}.
type RegistrationNumberSeq struct {
	PeriodID int64 `db:"period_id"`
	NextSeq  int   `db:"next_seq"`
}

var registrationNumberPattern = regexp.MustCompile(`^REG-(\d+)-(\d+)-(\d{5})$`)

// PeriodFromRegistrationNumber extracts the period id embedded in a
// registration_number of the REG-{school_id}-{period_id}-{seq5} form, so
// the anonymous result lookup can resolve a period without the caller
// naming one.
func PeriodFromRegistrationNumber(registrationNumber string) (int64, error) {
	matches := registrationNumberPattern.FindStringSubmatch(registrationNumber)
	if matches == nil {
		return 0, fmt.Errorf("malformed registration number")
	}
	periodID, err := strconv.ParseInt(matches[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed registration number: %w", err)
	}
	return periodID, nil
}
