package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/hostel-management/internal/authz"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/utils"
)

// levelLookup adapts the assignment store to the resolver's read-only
// view.
type levelLookup struct {
	assignments repository.AssignmentStore
}

func (l levelLookup) Level(ctx context.Context, userID, hostelID int64) (string, bool, error) {
	a, err := l.assignments.Get(ctx, userID, hostelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return a.PermissionLevel, true, nil
}

// canSetContext checks the per-role context rules: super_admin any
// existing hostel, admin/supervisor only assigned hostels, student only
// their home hostel, visitor never.
func (s *AuthService) canSetContext(ctx context.Context, u model.User, hostelID int64) error {
	switch u.Role {
	case model.RoleSuperAdmin:
		ok, err := s.st.Hostels.Exists(ctx, hostelID)
		if err != nil {
			return unavailable(err)
		}
		if !ok {
			return ErrNotFound
		}
		return nil
	case model.RoleAdmin, model.RoleSupervisor:
		_, err := s.st.Assignments.Get(ctx, u.ID, hostelID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Unauthorized(authz.ReasonNotAssigned)
			}
			return unavailable(err)
		}
		return nil
	case model.RoleStudent:
		if u.HomeHostelID == nil || *u.HomeHostelID != hostelID {
			return Unauthorized(authz.ReasonRoleDenied)
		}
		return nil
	default:
		return Unauthorized(authz.ReasonRoleDenied)
	}
}

// SwitchContext atomically moves the user's active context to the given
// hostel and returns a fresh access token bound to it.
func (s *AuthService) SwitchContext(ctx context.Context, u model.User, hostelID int64, ci ClientInfo) (utils.AccessToken, error) {
	if err := s.guardWrites(); err != nil {
		return utils.AccessToken{}, err
	}
	if err := s.canSetContext(ctx, u, hostelID); err != nil {
		return utils.AccessToken{}, err
	}
	if err := s.st.Sessions.Switch(ctx, u.ID, hostelID); err != nil {
		return utils.AccessToken{}, unavailable(err)
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, hostelID, s.cfg.AccessTTL)
	if err != nil {
		return utils.AccessToken{}, unavailable(err)
	}
	s.record(u.ID, &hostelID, model.AuditSwitchContext, "session_context", "", ci)
	return access, nil
}

// ClearContext drops the user's active context and returns an access
// token with no hostel claim.
func (s *AuthService) ClearContext(ctx context.Context, u model.User, ci ClientInfo) (utils.AccessToken, error) {
	if err := s.guardWrites(); err != nil {
		return utils.AccessToken{}, err
	}
	if err := s.st.Sessions.Clear(ctx, u.ID); err != nil {
		return utils.AccessToken{}, unavailable(err)
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, 0, s.cfg.AccessTTL)
	if err != nil {
		return utils.AccessToken{}, unavailable(err)
	}
	s.record(u.ID, nil, model.AuditClearContext, "session_context", "", ci)
	return access, nil
}

// AssignHostels maps an admin or supervisor onto hostels at one
// permission level, with upsert semantics on existing pairs. Only
// super_admins may assign.
func (s *AuthService) AssignHostels(ctx context.Context, caller model.User, adminID int64, hostelIDs []int64, level string, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	if caller.Role != model.RoleSuperAdmin {
		return Unauthorized(authz.ReasonRoleDenied)
	}
	if !model.ValidLevel(level) {
		return fmt.Errorf("%w: unknown permission level %q", ErrConflict, level)
	}
	target, err := s.st.Users.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	if target.Role != model.RoleAdmin && target.Role != model.RoleSupervisor {
		return fmt.Errorf("%w: user %d is not an admin or supervisor", ErrConflict, adminID)
	}
	for _, h := range hostelIDs {
		ok, err := s.st.Hostels.Exists(ctx, h)
		if err != nil {
			return unavailable(err)
		}
		if !ok {
			return fmt.Errorf("%w: hostel %d", ErrNotFound, h)
		}
	}
	if err := s.st.Assignments.BulkUpsert(ctx, adminID, hostelIDs, level); err != nil {
		return unavailable(err)
	}
	s.record(caller.ID, nil, model.AuditAssignHostel, "assignment",
		fmt.Sprintf("admin_id=%d hostels=%v level=%s", adminID, hostelIDs, level), ci)
	return nil
}

// RevokeHostel removes one (admin, hostel) assignment. The store drops
// any active session context on that hostel in the same transaction, so
// the admin cannot keep acting there through a stale context.
func (s *AuthService) RevokeHostel(ctx context.Context, caller model.User, adminID, hostelID int64, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	if caller.Role != model.RoleSuperAdmin {
		return Unauthorized(authz.ReasonRoleDenied)
	}
	if err := s.st.Assignments.Revoke(ctx, adminID, hostelID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	s.record(caller.ID, &hostelID, model.AuditRevokeHostel, "assignment",
		fmt.Sprintf("admin_id=%d", adminID), ci)
	return nil
}

// Authorize answers whether a user may perform an action, auditing
// every decision that grants or denies a mutation. Downstream CRUD
// collaborators call this before touching tenant data.
func (s *AuthService) Authorize(ctx context.Context, u model.User, action, resource string, targetHostelID int64, tenantScoped bool, ci ClientInfo) (authz.Decision, error) {
	mutating := authz.Mutating(action)
	if mutating {
		if err := s.guardWrites(); err != nil {
			return authz.Decision{}, err
		}
	}
	active, err := s.activeHostelID(ctx, u.ID)
	if err != nil {
		return authz.Decision{}, err
	}
	dec, err := authz.Resolve(ctx, authz.Input{
		User:           u,
		Action:         action,
		Resource:       resource,
		TargetHostelID: targetHostelID,
		ActiveHostelID: active,
		TenantScoped:   tenantScoped,
	}, levelLookup{assignments: s.st.Assignments})
	if err != nil {
		return authz.Decision{}, unavailable(err)
	}
	if mutating {
		details := "allow"
		if !dec.Allowed {
			details = "deny:" + dec.Reason
		}
		hostel := targetHostelID
		if hostel == 0 {
			hostel = active
		}
		var hostelRef *int64
		if hostel > 0 {
			hostelRef = &hostel
		}
		s.record(u.ID, hostelRef, action, resource, details, ci)
	}
	return dec, nil
}

// UpdateProfile applies the caller's own profile changes. The home
// hostel can only be set on students; everyone may change username
// and phone.
func (s *AuthService) UpdateProfile(ctx context.Context, u model.User, p repository.ProfileUpdate, ci ClientInfo) (model.User, error) {
	if err := s.guardWrites(); err != nil {
		return model.User{}, err
	}
	if p.HomeHostelID != nil && u.Role != model.RoleStudent {
		return model.User{}, Unauthorized(authz.ReasonRoleDenied)
	}
	if p.HomeHostelID != nil && *p.HomeHostelID > 0 {
		ok, err := s.st.Hostels.Exists(ctx, *p.HomeHostelID)
		if err != nil {
			return model.User{}, unavailable(err)
		}
		if !ok {
			return model.User{}, fmt.Errorf("%w: hostel %d", ErrNotFound, *p.HomeHostelID)
		}
	}
	if err := s.st.Users.UpdateProfile(ctx, u.ID, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		if key, ok := repository.IsDuplicate(err); ok {
			return model.User{}, fmt.Errorf("%w: %s already taken", ErrConflict, key)
		}
		return model.User{}, unavailable(err)
	}
	updated, err := s.st.Users.GetByID(ctx, u.ID)
	if err != nil {
		return model.User{}, unavailable(err)
	}
	s.record(u.ID, nil, model.AuditUpdateProfile, "user", "", ci)
	return updated, nil
}

// Profile is the /me view: identity, role, active context and effective
// permissions.
type Profile struct {
	User           model.User
	ActiveHostelID int64
	Permissions    []model.Permission
	Level          string // assignment level on the active hostel, if any
}

// Me resolves the caller's profile. Effective permissions are the
// role's permissions; for admins and supervisors the assignment level
// on the active hostel is included so clients can gate UI affordances.
func (s *AuthService) Me(ctx context.Context, u model.User) (Profile, error) {
	p := Profile{User: u}
	active, err := s.activeHostelID(ctx, u.ID)
	if err != nil {
		return Profile{}, err
	}
	p.ActiveHostelID = active
	perms, err := s.st.Permissions.ListForRole(ctx, u.Role)
	if err != nil {
		return Profile{}, unavailable(err)
	}
	p.Permissions = perms
	if active > 0 && (u.Role == model.RoleAdmin || u.Role == model.RoleSupervisor) {
		if a, err := s.st.Assignments.Get(ctx, u.ID, active); err == nil {
			p.Level = a.PermissionLevel
		} else if !errors.Is(err, repository.ErrNotFound) {
			return Profile{}, unavailable(err)
		}
	}
	return p, nil
}
