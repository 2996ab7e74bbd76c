package model

import "time"

// Permission levels attached to an (admin, hostel) assignment. Ordinal:
// read < write < admin.
const (
	LevelRead  = "read"
	LevelWrite = "write"
	LevelAdmin = "admin"
)

// levelRank maps a permission level to its ordinal for comparisons.
var levelRank = map[string]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAdmin: 3,
}

// ValidLevel reports whether s is a known permission level.
func ValidLevel(s string) bool {
	_, ok := levelRank[s]
	return ok
}

// LevelAtLeast reports whether level `have` satisfies requirement `need`.
// Unknown strings never satisfy anything.
func LevelAtLeast(have, need string) bool {
	h, ok1 := levelRank[have]
	n, ok2 := levelRank[need]
	return ok1 && ok2 && h >= n
}

// AdminHostelAssignment maps an admin or supervisor user onto one hostel
// with a permission level. The (AdminUserID, HostelID) pair is unique.
type AdminHostelAssignment struct {
	ID              int64     // admin_hostel_assignments.id
	AdminUserID     int64     // admin_hostel_assignments.admin_user_id
	HostelID        int64     // admin_hostel_assignments.hostel_id
	PermissionLevel string    // admin_hostel_assignments.permission_level
	CreatedAt       time.Time // admin_hostel_assignments.created_at
	UpdatedAt       time.Time // admin_hostel_assignments.updated_at
}

// SessionContext records which hostel a user is currently acting on.
// At most one row per user has IsActive=true; the database enforces this
// with a unique index over (CASE WHEN is_active THEN user_id END).
type SessionContext struct {
	ID        int64     // session_contexts.id
	UserID    int64     // session_contexts.user_id
	HostelID  int64     // session_contexts.hostel_id
	IsActive  bool      // session_contexts.is_active
	CreatedAt time.Time // session_contexts.created_at
	UpdatedAt time.Time // session_contexts.updated_at
}
