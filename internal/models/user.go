package models

import "time"

// User is a global-scope account; school_admin and parent rows are
// additionally scoped by SchoolID where applicable.
type User struct {
	ID                     int64      `db:"id" json:"id"`
	Email                  string     `db:"email" json:"email"`
	PasswordHash           string     `db:"password_hash" json:"-"`
	FullName               string     `db:"full_name" json:"full_name"`
	Phone                  *string    `db:"phone" json:"phone,omitempty"`
	NationalID             *string    `db:"national_id" json:"national_id,omitempty"`
	Role                   Role       `db:"role" json:"role"`
	SchoolID               *int64     `db:"school_id" json:"school_id,omitempty"`
	EmailVerified          bool       `db:"email_verified" json:"email_verified"`
	EmailVerificationToken *string    `db:"email_verification_token" json:"-"`
	ResetPasswordToken     *string    `db:"reset_password_token" json:"-"`
	ResetPasswordExpires   *time.Time `db:"reset_password_expires" json:"-"`
	LastLoginAt            *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	DeletedAt              *time.Time `db:"deleted_at" json:"-"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *Role
	SchoolID *int64
	Search   string
	Page     int
	PageSize int
}
