package models

import "time"

// SchoolStatus is the closed lifecycle set for a School.
type SchoolStatus string

const (
	SchoolStatusActive    SchoolStatus = "active"
	SchoolStatusInactive  SchoolStatus = "inactive"
	SchoolStatusSuspended SchoolStatus = "suspended"
)

// School is a tenant boundary: every other tenant-owned entity carries its ID.
type School struct {
	ID           int64        `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	NPSN         string       `db:"npsn" json:"npsn"`
	Code         string       `db:"code" json:"code"`
	Address      string       `db:"address" json:"address"`
	Phone        string       `db:"phone" json:"phone"`
	Email        string       `db:"email" json:"email"`
	Status       SchoolStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// SchoolFilter captures list filtering for the Catalog component.
type SchoolFilter struct {
	Search   string
	Status   *SchoolStatus
	Page     int
	PageSize int
}
