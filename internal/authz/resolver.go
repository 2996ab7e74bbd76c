// Package authz resolves (user, action, resource, hostel) requests into
// allow/deny decisions with machine-readable reason codes. The resolver
// never writes; auditing the decision is the caller's job.
package authz

import (
	"context"
	"strings"

	"github.com/iliyamo/hostel-management/internal/model"
)

// Reason codes carried on deny decisions.
const (
	ReasonNoContext         = "NO_CONTEXT"
	ReasonNotAssigned       = "NOT_ASSIGNED"
	ReasonInsufficientLevel = "INSUFFICIENT_LEVEL"
	ReasonRoleDenied        = "ROLE_DENIED"
)

// Decision is the resolver output. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r string) Decision { return Decision{Reason: r} }

// Input describes one authorization question. Actions are named
// "resource:verb" ("complaint:create", "room:delete"). TargetHostelID
// of 0 means "use the active context"; ActiveHostelID of 0 means the
// user has no context. TenantScoped marks resources that only exist
// inside one hostel.
type Input struct {
	User           model.User
	Action         string
	Resource       string
	TargetHostelID int64
	ActiveHostelID int64
	TenantScoped   bool
}

// LevelLookup answers "what permission level does this user hold on this
// hostel". ok=false means no assignment exists.
type LevelLookup interface {
	Level(ctx context.Context, userID, hostelID int64) (level string, ok bool, err error)
}

// studentActions are the only actions a student may perform, and only
// on their home hostel.
var studentActions = map[string]bool{
	"booking:view":     true,
	"complaint:create": true,
	"complaint:view":   true,
	"leave:create":     true,
	"leave:view":       true,
	"mess:view":        true,
	"profile:update":   true,
	"review:create":    true,
}

// visitorActions are open to unauthenticated-grade users: searching and
// drafting a booking.
var visitorActions = map[string]bool{
	"hostel:search": true,
	"booking:draft": true,
}

// requiredLevel classifies the assignment level an action demands.
// Reads need read, mutations need write, destructive and delegation
// actions need admin.
func requiredLevel(action string) string {
	verb := action
	if i := strings.LastIndexByte(action, ':'); i >= 0 {
		verb = action[i+1:]
	}
	switch verb {
	case "view", "list", "search", "read", "export":
		return model.LevelRead
	case "delete", "purge", "assign", "revoke", "delegate":
		return model.LevelAdmin
	default:
		return model.LevelWrite
	}
}

// Mutating reports whether an action changes state. Used by the facade
// to decide which decisions must be audited and which are refused in
// degraded mode.
func Mutating(action string) bool {
	return requiredLevel(action) != model.LevelRead
}

// Resolve answers one authorization question per the tenant rules:
//
//  1. super_admin is always allowed.
//  2. The effective hostel is the explicit target, else the active context.
//  3. Tenant-scoped resources with no effective hostel deny NO_CONTEXT.
//  4. admin/supervisor need an assignment on the effective hostel at the
//     required level: missing denies NOT_ASSIGNED, lower level denies
//     INSUFFICIENT_LEVEL.
//  5. Students act only on their home hostel within a fixed action set.
//  6. Visitors get the public set only.
func Resolve(ctx context.Context, in Input, levels LevelLookup) (Decision, error) {
	if in.User.Role == model.RoleSuperAdmin {
		return allow(), nil
	}

	effective := in.TargetHostelID
	if effective == 0 {
		effective = in.ActiveHostelID
	}
	if in.TenantScoped && effective == 0 {
		return deny(ReasonNoContext), nil
	}

	switch in.User.Role {
	case model.RoleAdmin, model.RoleSupervisor:
		level, ok, err := levels.Level(ctx, in.User.ID, effective)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return deny(ReasonNotAssigned), nil
		}
		if !model.LevelAtLeast(level, requiredLevel(in.Action)) {
			return deny(ReasonInsufficientLevel), nil
		}
		return allow(), nil

	case model.RoleStudent:
		if in.User.HomeHostelID == nil || *in.User.HomeHostelID != effective {
			return deny(ReasonRoleDenied), nil
		}
		if !studentActions[in.Action] {
			return deny(ReasonRoleDenied), nil
		}
		return allow(), nil

	case model.RoleVisitor:
		if !visitorActions[in.Action] {
			return deny(ReasonRoleDenied), nil
		}
		return allow(), nil

	default:
		return deny(ReasonRoleDenied), nil
	}
}
