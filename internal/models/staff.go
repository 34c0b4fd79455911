package models

import "time"

// StaffIdentity is the resolved caller behind an admin session.
type StaffIdentity struct {
	SessionID string
	UserID    string
	StaffID   string
	TenantID  string
	Role      string
	ExpiresAt time.Time
}

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleStaff   = "staff"
)
