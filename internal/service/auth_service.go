package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/iliyamo/hostel-management/internal/audit"
	"github.com/iliyamo/hostel-management/internal/authz"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/notify"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/utils"
)

// Stores groups every persistence interface the facade composes. A
// single *repository.Memory satisfies all of them in tests.
type Stores struct {
	Users       repository.UserStore
	Tokens      repository.TokenStore
	Assignments repository.AssignmentStore
	Sessions    repository.SessionStore
	Permissions repository.PermissionStore
	Hostels     repository.HostelStore
}

// ClientInfo carries request metadata into audit records.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuthResult is returned by operations that issue a token pair.
type AuthResult struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// AuthService is the facade over C1-C8. Each operation opens and
// commits (or rolls back) its own transactions through the stores; the
// database is the serialization authority.
type AuthService struct {
	st       Stores
	sink     *audit.Sink
	notifier notify.Notifier
	cfg      config.Config

	// credentialDelay normalizes the latency of credential failures so
	// response timing cannot be used for enumeration. Stubbed in tests.
	credentialDelay func()

	// verify compares a bcrypt hash against a candidate password. A
	// field so tests can observe that every credential failure performs
	// the same hashing work.
	verify func(hash, plain string) bool

	// dummyHash is compared against when an identifier resolves to no
	// account. bcrypt's cost dominates login latency, so the missing-
	// user path must burn the same comparison as the wrong-password
	// path.
	dummyHash string
}

// NewAuthService builds the facade.
func NewAuthService(st Stores, sink *audit.Sink, notifier notify.Notifier, cfg config.Config) *AuthService {
	// Hashed at the configured cost so the decoy comparison takes as
	// long as a real one.
	dummyHash, _ := utils.HashPassword("decoy-for-unknown-identifiers", cfg.BcryptCost)
	return &AuthService{
		st:        st,
		sink:      sink,
		notifier:  notifier,
		cfg:       cfg,
		verify:    utils.VerifyPassword,
		dummyHash: dummyHash,
		credentialDelay: func() {
			time.Sleep(50*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond)
		},
	}
}

// unavailable wraps an unexpected storage error so it can never be
// mistaken for an authorization failure.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// guardWrites refuses state-changing operations while the audit sink
// cannot guarantee that the decision will be recorded.
func (s *AuthService) guardWrites() error {
	if !s.sink.Healthy() {
		return ErrDegraded
	}
	return nil
}

// record emits exactly one audit record for a facade operation. A
// rejected record means the queue filled after this operation passed
// guardWrites; the sink is already degraded and the next guarded
// operation will be refused, but the specific loss is logged here.
func (s *AuthService) record(userID int64, hostelID *int64, action, resource, details string, ci ClientInfo) {
	ok := s.sink.Record(model.AuditRecord{
		UserID:    userID,
		HostelID:  hostelID,
		Action:    action,
		Resource:  resource,
		IP:        ci.IP,
		UserAgent: ci.UserAgent,
		Details:   details,
	})
	if !ok {
		log.Printf("audit: dropped record action=%s user_id=%d resource=%s", action, userID, resource)
	}
}

// activeHostelID returns the user's active context hostel, or 0.
func (s *AuthService) activeHostelID(ctx context.Context, userID int64) (int64, error) {
	sc, err := s.st.Sessions.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return sc.HostelID, nil
}

// issuePair creates an access token bound to the user's current context
// plus a fresh refresh token, and persists the refresh hash.
func (s *AuthService) issuePair(ctx context.Context, u model.User) (*AuthResult, error) {
	hostelID, err := s.activeHostelID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, hostelID, s.cfg.AccessTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	if err := s.st.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, unavailable(err)
	}
	return &AuthResult{User: u, Access: access, Refresh: refresh}, nil
}

// GetUser loads an active user by id. Deactivated accounts read as
// invalid credentials so stale bearer tokens stop working immediately.
func (s *AuthService) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, err := s.st.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, unavailable(err)
	}
	if !u.IsActive {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email        string
	Username     string
	Phone        string
	Password     string
	Role         string
	HomeHostelID int64
}

// Register creates a visitor or student account and returns a token
// pair. Staff roles are never self-service; they are created by a
// super_admin through AssignRole.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, ci ClientInfo) (*AuthResult, error) {
	if err := s.guardWrites(); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = model.RoleVisitor
	}
	if role != model.RoleVisitor && role != model.RoleStudent {
		return nil, Unauthorized(authz.ReasonRoleDenied)
	}
	if role == model.RoleStudent && in.HomeHostelID <= 0 {
		return nil, fmt.Errorf("%w: student requires a home hostel", ErrConflict)
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, unavailable(err)
	}
	u := model.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if in.Phone != "" {
		u.Phone = &in.Phone
	}
	if in.HomeHostelID > 0 {
		u.HomeHostelID = &in.HomeHostelID
	}
	if err := s.st.Users.Create(ctx, &u); err != nil {
		if key, ok := repository.IsDuplicate(err); ok {
			return nil, fmt.Errorf("%w: %s already taken", ErrConflict, key)
		}
		return nil, unavailable(err)
	}
	s.record(u.ID, u.HomeHostelID, model.AuditRegister, "user", "role="+role, ci)
	return s.issuePair(ctx, u)
}

// Login verifies credentials by email, username or phone and issues a
// token pair. Every failure path returns the same generic error after a
// normalized delay, so neither the response body nor its timing reveals
// whether the identifier exists.
func (s *AuthService) Login(ctx context.Context, identifier, password string, ci ClientInfo) (*AuthResult, error) {
	if err := s.guardWrites(); err != nil {
		return nil, err
	}
	u, err := s.st.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same hashing work as the wrong-password path, so latency
			// does not reveal whether the identifier exists.
			s.verify(s.dummyHash, password)
			s.credentialDelay()
			return nil, ErrInvalidCredentials
		}
		return nil, unavailable(err)
	}
	if !s.verify(u.PasswordHash, password) || !u.IsActive {
		s.credentialDelay()
		s.record(u.ID, nil, model.AuditLoginFailed, "session", "", ci)
		return nil, ErrInvalidCredentials
	}
	res, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	s.record(u.ID, nil, model.AuditLogin, "session", "", ci)
	return res, nil
}

// Refresh rotates a refresh token: the old token is revoked and a new
// pair issued in one transaction. Presenting an already-revoked token
// is treated as compromise and revokes the user's whole token family.
func (s *AuthService) Refresh(ctx context.Context, rawToken string, ci ClientInfo) (*AuthResult, error) {
	if err := s.guardWrites(); err != nil {
		return nil, err
	}
	hash := utils.HashRefreshRaw(rawToken)
	t, err := s.st.Tokens.FindRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrInvalidToken
		}
		return nil, unavailable(err)
	}
	if t.RevokedAt != nil {
		// Reuse after rotation: compromise. Kill the family.
		if err := s.st.Tokens.RevokeAllForUser(ctx, t.UserID); err != nil {
			return nil, unavailable(err)
		}
		s.record(t.UserID, nil, model.AuditRefreshReuse, "session", "revoked token replayed", ci)
		return nil, utils.ErrInvalidToken
	}
	now := time.Now().UTC()
	if !now.Before(t.ExpiresAt) {
		return nil, utils.ErrExpiredToken
	}
	u, err := s.st.Users.GetByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrInvalidToken
		}
		return nil, unavailable(err)
	}
	if !u.IsActive {
		return nil, utils.ErrInvalidToken
	}

	// Resolve the active context before touching the token row: once
	// the rotation commits, only local signing remains, so a storage
	// hiccup can never strand the user with both tokens dead.
	hostelID, err := s.activeHostelID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	newRefresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	err = s.st.Tokens.Rotate(ctx, hash, u.ID, utils.HashRefreshRaw(newRefresh.Raw), newRefresh.Exp)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with another rotation of the same token:
			// same treatment as replay.
			if err := s.st.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
				return nil, unavailable(err)
			}
			s.record(u.ID, nil, model.AuditRefreshReuse, "session", "concurrent rotation", ci)
			return nil, utils.ErrInvalidToken
		}
		return nil, unavailable(err)
	}

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, hostelID, s.cfg.AccessTTL)
	if err != nil {
		return nil, unavailable(err)
	}
	s.record(u.ID, nil, model.AuditRefresh, "session", "", ci)
	return &AuthResult{User: u, Access: access, Refresh: newRefresh}, nil
}

// Logout revokes every live refresh token the user holds.
func (s *AuthService) Logout(ctx context.Context, userID int64, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	if err := s.st.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return unavailable(err)
	}
	s.record(userID, nil, model.AuditLogout, "session", "", ci)
	return nil
}

// AssignRole changes a user's role. Only super_admins may call it; the
// target's refresh tokens are revoked because existing sessions carry
// the old role claim.
func (s *AuthService) AssignRole(ctx context.Context, caller model.User, targetID int64, role string, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	if caller.Role != model.RoleSuperAdmin {
		return Unauthorized(authz.ReasonRoleDenied)
	}
	if !model.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrConflict, role)
	}
	target, err := s.st.Users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	if err := s.st.Users.SetRole(ctx, targetID, role); err != nil {
		return unavailable(err)
	}
	if err := s.st.Tokens.RevokeAllForUser(ctx, targetID); err != nil {
		return unavailable(err)
	}
	s.record(caller.ID, nil, model.AuditAssignRole, "user",
		fmt.Sprintf("user_id=%d %s->%s", targetID, target.Role, role), ci)
	return nil
}

// Deactivate disables a user account and revokes its tokens. Users are
// never hard-deleted.
func (s *AuthService) Deactivate(ctx context.Context, caller model.User, targetID int64, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	if caller.Role != model.RoleSuperAdmin {
		return Unauthorized(authz.ReasonRoleDenied)
	}
	if err := s.st.Users.Deactivate(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	if err := s.st.Tokens.RevokeAllForUser(ctx, targetID); err != nil {
		return unavailable(err)
	}
	if err := s.st.Sessions.Clear(ctx, targetID); err != nil {
		return unavailable(err)
	}
	s.record(caller.ID, nil, model.AuditDeactivateUser, "user",
		fmt.Sprintf("user_id=%d", targetID), ci)
	return nil
}
