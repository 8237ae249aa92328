package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of principal roles recognised by Authorization.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleSchoolAdmin Role = "school_admin"
	RoleParent      Role = "parent"
)

// Pagination carries list-response metadata: page, page_size, total, total_pages.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total_pages from total and page_size.
func NewPagination(page, pageSize, total int) *Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

// JWTClaims is the payload carried by access and refresh tokens. Role and
// SchoolID are embedded for handler convenience but must be re-validated
// against the persisted user on every request.
type JWTClaims struct {
	UserID   string  `json:"user_id"`
	Type     string  `json:"type"` // "access" or "refresh"
	Role     Role    `json:"role"`
	SchoolID *int64  `json:"school_id,omitempty"`
	Email    string  `json:"email"`
	jwt.RegisteredClaims
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// RefreshToken persists an issued refresh token so Logout can revoke it
// when a revocation sink is wired ( open question).
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// AnalyticsSystemMetrics is a point-in-time snapshot of process-level
// operational metrics, exposed alongside the Prometheus endpoint.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
