package models

import "time"

// AuditAction is the closed enumeration of actions recorded on AuditEntry.
type AuditAction string

const (
	AuditActionLogin              AuditAction = "login"
	AuditActionLogout             AuditAction = "logout"
	AuditActionRegister           AuditAction = "register"
	AuditActionPasswordChange     AuditAction = "password_change"
	AuditActionCreate             AuditAction = "create"
	AuditActionUpdate             AuditAction = "update"
	AuditActionDelete             AuditAction = "delete"
	AuditActionSubmit             AuditAction = "submit"
	AuditActionVerify             AuditAction = "verify"
	AuditActionReject             AuditAction = "reject"
	AuditActionRunSelection       AuditAction = "run_selection"
	AuditActionAnnounce           AuditAction = "announce"
)

// AuditEntry is an append-only record of a state-changing action.
type AuditEntry struct {
	ID         int64       `db:"id" json:"id"`
	SchoolID   *int64      `db:"school_id" json:"school_id,omitempty"`
	UserID     *int64      `db:"user_id" json:"user_id,omitempty"`
	EntityType string      `db:"entity_type" json:"entity_type"`
	EntityID   string      `db:"entity_id" json:"entity_id"`
	Action     AuditAction `db:"action" json:"action"`
	OldValue   []byte      `db:"old_value" json:"old_value,omitempty"`
	NewValue   []byte      `db:"new_value" json:"new_value,omitempty"`
	IPAddress  string      `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string      `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// FederatedIdentity links a User to an external identity provider. Used
// only by an optional external-sync collaborator.
type FederatedIdentity struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Provider       string     `db:"provider" json:"provider"`
	ProviderUserID string     `db:"provider_user_id" json:"provider_user_id"`
	AccessToken    *string    `db:"access_token" json:"-"`
	RefreshToken   *string    `db:"refresh_token" json:"-"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	SyncStatus     string     `db:"sync_status" json:"sync_status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
