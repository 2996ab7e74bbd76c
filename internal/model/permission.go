package model

import "time"

// Permission is a named (resource, action) capability. Roles map onto
// permissions through the role_permissions join table; an admin's
// assignment level can additionally imply permissions on the active
// hostel.
type Permission struct {
	ID        int64     // permissions.id
	Name      string    // permissions.name (unique)
	Resource  string    // permissions.resource
	Action    string    // permissions.action
	IsActive  bool      // permissions.is_active
	CreatedAt time.Time // permissions.created_at
}

// AuditRecord is one append-only row in audit_logs. Records are never
// mutated or deleted after insertion.
type AuditRecord struct {
	ID        int64     // audit_logs.id (monotonic)
	UserID    int64     // audit_logs.user_id
	HostelID  *int64    // audit_logs.hostel_id (nullable)
	Action    string    // audit_logs.action
	Resource  string    // audit_logs.resource
	IP        string    // audit_logs.ip
	UserAgent string    // audit_logs.user_agent
	Details   string    // audit_logs.details
	CreatedAt time.Time // audit_logs.created_at
}

// Audit action names emitted by the auth facade. One record per
// state-changing facade operation.
const (
	AuditLogin            = "LOGIN"
	AuditLoginFailed      = "LOGIN_FAILED"
	AuditRefresh          = "REFRESH"
	AuditRefreshReuse     = "REFRESH_REUSE"
	AuditLogout           = "LOGOUT"
	AuditRegister         = "REGISTER"
	AuditUpdateProfile    = "UPDATE_PROFILE"
	AuditAssignRole       = "ASSIGN_ROLE"
	AuditSwitchContext    = "SWITCH_CONTEXT"
	AuditClearContext     = "CLEAR_CONTEXT"
	AuditAssignHostel     = "ASSIGN_HOSTEL"
	AuditRevokeHostel     = "REVOKE_HOSTEL"
	AuditDeactivateUser   = "DEACTIVATE_USER"
	AuditPasswordReset    = "PASSWORD_RESET"
	AuditPasswordResetReq = "PASSWORD_RESET_REQUEST"
)
