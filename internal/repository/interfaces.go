package repository

import (
	"context"
	"time"

	"github.com/iliyamo/hostel-management/internal/model"
)

// ProfileUpdate enumerates the mutable profile fields explicitly. Nil
// means "leave unchanged"; updates never project arbitrary maps onto
// rows, so every writable column is greppable here.
type ProfileUpdate struct {
	Username     *string
	Phone        *string
	HomeHostelID *int64
}

// UserStore persists users and resolves login identifiers.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	// FindByIdentifier tries email, then username, then phone.
	FindByIdentifier(ctx context.Context, identifier string) (model.User, error)
	UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error
	SetRole(ctx context.Context, id int64, role string) error
	SetPassword(ctx context.Context, id int64, hash string) error
	Deactivate(ctx context.Context, id int64) error
}

// TokenStore persists refresh-token and reset-token hashes. Rotate is
// atomic: the old token is revoked and the new one inserted in a single
// transaction, so readers never observe both valid.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID int64, tokenHash string, exp time.Time) error
	// FindRefresh returns the row even when revoked or expired so the
	// caller can detect reuse of a rotated token.
	FindRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, userID int64, newHash string, exp time.Time) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	StoreReset(ctx context.Context, userID int64, tokenHash string, exp time.Time) error
	// ConsumeReset marks a live reset token used and returns its owner.
	ConsumeReset(ctx context.Context, tokenHash string) (int64, error)
}

// AssignmentStore persists admin<->hostel mappings. Revoke additionally
// deactivates any active session context the admin holds on that hostel
// inside the same transaction.
type AssignmentStore interface {
	Upsert(ctx context.Context, adminID, hostelID int64, level string) error
	BulkUpsert(ctx context.Context, adminID int64, hostelIDs []int64, level string) error
	Get(ctx context.Context, adminID, hostelID int64) (model.AdminHostelAssignment, error)
	ListByAdmin(ctx context.Context, adminID int64) ([]model.AdminHostelAssignment, error)
	ListByHostel(ctx context.Context, hostelID int64) ([]model.AdminHostelAssignment, error)
	Revoke(ctx context.Context, adminID, hostelID int64) error
}

// SessionStore maintains the per-user active context row. Switch is one
// transaction: the prior active row is deactivated and the new one
// activated; the unique active index makes concurrent switches safe.
type SessionStore interface {
	GetActive(ctx context.Context, userID int64) (model.SessionContext, error)
	Switch(ctx context.Context, userID, hostelID int64) error
	Clear(ctx context.Context, userID int64) error
}

// PermissionStore reads the role -> permission mapping.
type PermissionStore interface {
	ListForRole(ctx context.Context, role string) ([]model.Permission, error)
}

// AuditStore appends immutable audit rows.
type AuditStore interface {
	Append(ctx context.Context, rec *model.AuditRecord) error
}

// HostelStore is the minimal view of the hostels reference table the
// auth core needs: existence checks for tenant ids.
type HostelStore interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
