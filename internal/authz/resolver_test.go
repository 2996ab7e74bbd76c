package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/model"
)

// stubLevels answers lookups from a fixed (user,hostel) table.
type stubLevels struct {
	levels map[[2]int64]string
	err    error
}

func (s stubLevels) Level(_ context.Context, userID, hostelID int64) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	l, ok := s.levels[[2]int64{userID, hostelID}]
	return l, ok, nil
}

func hostelRef(id int64) *int64 { return &id }

func TestResolveSuperAdminBypassesEverything(t *testing.T) {
	dec, err := Resolve(context.Background(), Input{
		User:         model.User{ID: 1, Role: model.RoleSuperAdmin},
		Action:       "room:delete",
		TenantScoped: true,
	}, stubLevels{})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestResolveReasonCodes(t *testing.T) {
	levels := stubLevels{levels: map[[2]int64]string{
		{10, 1}: model.LevelRead,
		{11, 1}: model.LevelWrite,
		{12, 1}: model.LevelAdmin,
	}}

	tests := []struct {
		name    string
		in      Input
		allowed bool
		reason  string
	}{
		{
			"tenant scoped without context",
			Input{User: model.User{ID: 10, Role: model.RoleAdmin}, Action: "room:view", TenantScoped: true},
			false, ReasonNoContext,
		},
		{
			"admin without assignment",
			Input{User: model.User{ID: 10, Role: model.RoleAdmin}, Action: "room:view", TargetHostelID: 2, TenantScoped: true},
			false, ReasonNotAssigned,
		},
		{
			"read level cannot write",
			Input{User: model.User{ID: 10, Role: model.RoleAdmin}, Action: "room:update", TargetHostelID: 1, TenantScoped: true},
			false, ReasonInsufficientLevel,
		},
		{
			"write level cannot delete",
			Input{User: model.User{ID: 11, Role: model.RoleSupervisor}, Action: "room:delete", TargetHostelID: 1, TenantScoped: true},
			false, ReasonInsufficientLevel,
		},
		{
			"write level can update",
			Input{User: model.User{ID: 11, Role: model.RoleSupervisor}, Action: "room:update", TargetHostelID: 1, TenantScoped: true},
			true, "",
		},
		{
			"admin level can delete",
			Input{User: model.User{ID: 12, Role: model.RoleAdmin}, Action: "room:delete", TargetHostelID: 1, TenantScoped: true},
			true, "",
		},
		{
			"active context fills in the target",
			Input{User: model.User{ID: 10, Role: model.RoleAdmin}, Action: "room:view", ActiveHostelID: 1, TenantScoped: true},
			true, "",
		},
		{
			"student on home hostel",
			Input{User: model.User{ID: 20, Role: model.RoleStudent, HomeHostelID: hostelRef(3)}, Action: "complaint:create", TargetHostelID: 3, TenantScoped: true},
			true, "",
		},
		{
			"student on foreign hostel",
			Input{User: model.User{ID: 20, Role: model.RoleStudent, HomeHostelID: hostelRef(3)}, Action: "complaint:create", TargetHostelID: 4, TenantScoped: true},
			false, ReasonRoleDenied,
		},
		{
			"student outside action set",
			Input{User: model.User{ID: 20, Role: model.RoleStudent, HomeHostelID: hostelRef(3)}, Action: "room:delete", TargetHostelID: 3, TenantScoped: true},
			false, ReasonRoleDenied,
		},
		{
			"visitor can search",
			Input{User: model.User{ID: 30, Role: model.RoleVisitor}, Action: "hostel:search"},
			true, "",
		},
		{
			"visitor cannot complain",
			Input{User: model.User{ID: 30, Role: model.RoleVisitor}, Action: "complaint:create"},
			false, ReasonRoleDenied,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := Resolve(context.Background(), tc.in, levels)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, dec.Allowed)
			assert.Equal(t, tc.reason, dec.Reason)
		})
	}
}

func TestResolveLookupErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	_, err := Resolve(context.Background(), Input{
		User:           model.User{ID: 10, Role: model.RoleAdmin},
		Action:         "room:view",
		TargetHostelID: 1,
		TenantScoped:   true,
	}, stubLevels{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestRequiredLevelAndMutating(t *testing.T) {
	assert.Equal(t, model.LevelRead, requiredLevel("room:view"))
	assert.Equal(t, model.LevelRead, requiredLevel("booking:export"))
	assert.Equal(t, model.LevelWrite, requiredLevel("room:update"))
	assert.Equal(t, model.LevelWrite, requiredLevel("complaint:create"))
	assert.Equal(t, model.LevelAdmin, requiredLevel("room:delete"))
	assert.Equal(t, model.LevelAdmin, requiredLevel("staff:assign"))

	assert.False(t, Mutating("room:list"))
	assert.True(t, Mutating("room:update"))
	assert.True(t, Mutating("room:purge"))
}
