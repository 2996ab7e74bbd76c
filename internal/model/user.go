package model

import "time"

// Role values form a closed set. The string stored in users.role must be
// one of these; repositories reject anything else.
const (
	RoleVisitor    = "visitor"
	RoleStudent    = "student"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Roles lists every valid role in a stable order, used by the /roles
// endpoint and by validation.
var Roles = []string{RoleVisitor, RoleStudent, RoleSupervisor, RoleAdmin, RoleSuperAdmin}

// ValidRole reports whether s is a member of the closed role set.
func ValidRole(s string) bool {
	for _, r := range Roles {
		if r == s {
			return true
		}
	}
	return false
}

// User represents an application user record as stored in the `users`
// table. HomeHostelID is nil when the user is not tied to a hostel;
// values <= 0 coming from clients are normalized to nil before this
// struct is ever populated.
//
// Invariants enforced by the repository layer:
//   - email and username are unique globally (email lowercased);
//   - a super_admin never has HomeHostelID set;
//   - a student must have HomeHostelID set once onboarded.
type User struct {
	ID           int64     // users.id
	Email        string    // users.email (lowercased)
	Username     string    // users.username
	Phone        *string   // users.phone (nullable)
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role (closed set above)
	HomeHostelID *int64    // users.home_hostel_id (nullable tenant ref)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        int64      // refresh_tokens.id
	UserID    int64      // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash (sha256 hex)
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Valid reports whether the token can still be exchanged: not revoked
// and not past its expiry. The owner's active flag is checked separately
// because it lives on the users table.
func (t RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// PasswordResetToken is a single-use token for the password-reset flow.
// Stored hashed, consumed on first successful confirm.
type PasswordResetToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
