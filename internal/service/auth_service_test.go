package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/audit"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/utils"
)

const testPassword = "Sturdy!Pass#42x"

// captureNotifier records outbound messages so tests can fish reset
// tokens out of them.
type captureNotifier struct {
	recipient string
	body      string
}

func (n *captureNotifier) Send(_ context.Context, recipient, _, body string) error {
	n.recipient = recipient
	n.body = body
	return nil
}

type fixture struct {
	mem      *repository.Memory
	sink     *audit.Sink
	notifier *captureNotifier
	svc      *AuthService
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := repository.NewMemory()
	mem.AddHostel(1)
	mem.AddHostel(2)

	sink := audit.NewSink(mem, 64)
	t.Cleanup(sink.Close)

	notifier := &captureNotifier{}
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		ResetTTL:   time.Hour,
		BcryptCost: 4,
	}
	svc := NewAuthService(Stores{
		Users: mem, Tokens: mem, Assignments: mem,
		Sessions: mem, Permissions: mem, Hostels: mem,
	}, sink, notifier, cfg)
	svc.credentialDelay = func() {}

	return &fixture{mem: mem, sink: sink, notifier: notifier, svc: svc}
}

// addUser creates an active user directly in the store, bypassing the
// registration rules so tests can mint staff accounts.
func (f *fixture) addUser(t *testing.T, role string, home int64) model.User {
	t.Helper()
	f.seq++
	hash, err := utils.HashPassword(testPassword, 4)
	require.NoError(t, err)
	u := model.User{
		Email:        fmt.Sprintf("%s%d@example.com", role, f.seq),
		Username:     fmt.Sprintf("%s%d", role, f.seq),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if home > 0 {
		u.HomeHostelID = &home
	}
	require.NoError(t, f.mem.Create(context.Background(), &u))
	return u
}

// auditActions drains the sink and returns the persisted action names.
func (f *fixture) auditActions() []string {
	f.sink.Close()
	out := make([]string, len(f.mem.AuditRows))
	for i, r := range f.mem.AuditRows {
		out[i] = r.Action
	}
	return out
}

var noClient = ClientInfo{IP: "127.0.0.1", UserAgent: "test"}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterInput{
		Email:        "Dana@Example.com",
		Username:     "dana",
		Password:     testPassword,
		Role:         model.RoleStudent,
		HomeHostelID: 1,
	}, noClient)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", res.User.Email, "emails are stored lowercase")
	assert.NotEmpty(t, res.Access.Token)
	assert.NotEmpty(t, res.Refresh.Raw)

	claims, err := utils.ParseAccessToken("test-secret", res.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, model.RoleStudent, claims.Role)

	// Any of the three identifiers logs in.
	for _, id := range []string{"dana@example.com", "dana"} {
		got, err := f.svc.Login(ctx, id, testPassword, noClient)
		require.NoError(t, err, "identifier %q", id)
		assert.Equal(t, res.User.ID, got.User.ID)
	}

	_, err = f.svc.Login(ctx, "dana", "wrong password", noClient)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody@example.com", testPassword, noClient)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Staff roles are never self-service.
	var authzErr *AuthzError
	_, err := f.svc.Register(ctx, RegisterInput{
		Email: "a@example.com", Username: "a", Password: testPassword, Role: model.RoleAdmin,
	}, noClient)
	require.ErrorAs(t, err, &authzErr)

	// Students need a home hostel.
	_, err = f.svc.Register(ctx, RegisterInput{
		Email: "b@example.com", Username: "b", Password: testPassword, Role: model.RoleStudent,
	}, noClient)
	assert.ErrorIs(t, err, ErrConflict)

	// Empty role defaults to visitor.
	res, err := f.svc.Register(ctx, RegisterInput{
		Email: "c@example.com", Username: "c", Password: testPassword,
	}, noClient)
	require.NoError(t, err)
	assert.Equal(t, model.RoleVisitor, res.User.Role)

	// Duplicate email reports which key collides.
	_, err = f.svc.Register(ctx, RegisterInput{
		Email: "c@example.com", Username: "other", Password: testPassword,
	}, noClient)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "email")
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, model.RoleStudent, 1)
	require.NoError(t, f.mem.Deactivate(context.Background(), u.ID))

	_, err := f.svc.Login(context.Background(), u.Email, testPassword, noClient)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	first, err := f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.Refresh.Raw, noClient)
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh.Raw, second.Refresh.Raw)
	assert.Equal(t, 1, f.mem.LiveRefreshCount(u.ID), "rotation leaves exactly one live token")

	// Replaying the rotated-out token is treated as compromise: the
	// whole family dies, including the fresh one.
	_, err = f.svc.Refresh(ctx, first.Refresh.Raw, noClient)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
	assert.Equal(t, 0, f.mem.LiveRefreshCount(u.ID))

	_, err = f.svc.Refresh(ctx, second.Refresh.Raw, noClient)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)

	assert.Contains(t, f.auditActions(), model.AuditRefreshReuse)
}

func TestRefreshExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	raw := strings.Repeat("ab", 48)
	require.NoError(t, f.mem.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(raw), time.Now().Add(-time.Minute)))

	_, err := f.svc.Refresh(ctx, raw, noClient)
	assert.ErrorIs(t, err, utils.ErrExpiredToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Refresh(context.Background(), "never issued", noClient)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestRefreshInactiveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	res, err := f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)
	require.NoError(t, f.mem.Deactivate(ctx, u.ID))

	_, err = f.svc.Refresh(ctx, res.Refresh.Raw, noClient)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestLogoutRevokesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	_, err := f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)
	require.Equal(t, 2, f.mem.LiveRefreshCount(u.ID))

	require.NoError(t, f.svc.Logout(ctx, u.ID, noClient))
	assert.Equal(t, 0, f.mem.LiveRefreshCount(u.ID))
}

func TestAssignRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	super := f.addUser(t, model.RoleSuperAdmin, 0)
	target := f.addUser(t, model.RoleVisitor, 0)

	// Only super_admins assign roles.
	var authzErr *AuthzError
	admin := f.addUser(t, model.RoleAdmin, 0)
	err := f.svc.AssignRole(ctx, admin, target.ID, model.RoleSupervisor, noClient)
	require.ErrorAs(t, err, &authzErr)

	err = f.svc.AssignRole(ctx, super, target.ID, "landlord", noClient)
	assert.ErrorIs(t, err, ErrConflict)

	err = f.svc.AssignRole(ctx, super, 9999, model.RoleAdmin, noClient)
	assert.ErrorIs(t, err, ErrNotFound)

	// A promoted user's existing sessions carry the old role claim, so
	// their refresh tokens die with the promotion.
	_, err = f.svc.Login(ctx, target.Email, testPassword, noClient)
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignRole(ctx, super, target.ID, model.RoleAdmin, noClient))
	assert.Equal(t, 0, f.mem.LiveRefreshCount(target.ID))

	got, err := f.mem.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	super := f.addUser(t, model.RoleSuperAdmin, 0)
	admin := f.addUser(t, model.RoleAdmin, 0)
	require.NoError(t, f.mem.Upsert(ctx, admin.ID, 1, model.LevelAdmin))

	_, err := f.svc.Login(ctx, admin.Email, testPassword, noClient)
	require.NoError(t, err)
	_, err = f.svc.SwitchContext(ctx, admin, 1, noClient)
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(ctx, super, admin.ID, noClient))

	assert.Equal(t, 0, f.mem.LiveRefreshCount(admin.ID))
	_, err = f.mem.GetActive(ctx, admin.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Login(ctx, admin.Email, testPassword, noClient)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	_, err := f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)

	// Unknown addresses get the same silent success.
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ghost@example.com", noClient))
	assert.Empty(t, f.notifier.recipient)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, u.Email, noClient))
	require.Equal(t, u.Email, f.notifier.recipient)
	i := strings.LastIndexByte(f.notifier.body, ' ')
	require.Positive(t, i)
	token := f.notifier.body[i+1:]

	// Weak replacements are rejected before the token is spent.
	err = f.svc.ConfirmPasswordReset(ctx, token, "weak", noClient)
	assert.ErrorIs(t, err, ErrConflict)

	const newPassword = "Fresh!Pass#77z"
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, newPassword, noClient))

	// Old password and old sessions are both dead.
	_, err = f.svc.Login(ctx, u.Email, testPassword, noClient)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, f.mem.LiveRefreshCount(u.ID))
	_, err = f.svc.Login(ctx, u.Email, newPassword, noClient)
	require.NoError(t, err)

	// The token is single-use.
	err = f.svc.ConfirmPasswordReset(ctx, token, "Other!Pass#88q", noClient)
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
}

func TestLoginHashingWorkIsUniform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	// bcrypt dominates login latency, so the unknown-identifier path
	// must perform exactly the comparison the wrong-password path does.
	var hashes []string
	f.svc.verify = func(hash, plain string) bool {
		hashes = append(hashes, hash)
		return utils.VerifyPassword(hash, plain)
	}

	_, err := f.svc.Login(ctx, "ghost@example.com", testPassword, noClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Len(t, hashes, 1, "missing identifier still burns one comparison")
	assert.Equal(t, f.svc.dummyHash, hashes[0])
	assert.NotEmpty(t, f.svc.dummyHash)

	_, err = f.svc.Login(ctx, u.Email, "wrong password", noClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Len(t, hashes, 2)
	assert.Equal(t, u.PasswordHash, hashes[1])
}

// failingSessionStore refuses every call, standing in for a database
// outage scoped to the session_contexts table.
type failingSessionStore struct{}

func (failingSessionStore) GetActive(context.Context, int64) (model.SessionContext, error) {
	return model.SessionContext{}, errors.New("db down")
}
func (failingSessionStore) Switch(context.Context, int64, int64) error { return errors.New("db down") }
func (failingSessionStore) Clear(context.Context, int64) error         { return errors.New("db down") }

func TestRefreshKeepsTokenWhenContextLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	res, err := f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)

	st := f.svc.st
	st.Sessions = failingSessionStore{}
	broken := NewAuthService(st, f.sink, f.notifier, f.svc.cfg)
	broken.credentialDelay = func() {}

	// The context lookup fails before the rotation runs, so the
	// presented token must survive.
	_, err = broken.Refresh(ctx, res.Refresh.Raw, noClient)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, f.mem.LiveRefreshCount(u.ID))

	_, err = f.svc.Refresh(ctx, res.Refresh.Raw, noClient)
	require.NoError(t, err, "the token is still exchangeable once storage recovers")
}

// failingAuditStore always refuses appends, pushing the sink into
// degraded mode.
type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, *model.AuditRecord) error {
	return errors.New("audit store down")
}

func TestDegradedModeRefusesWrites(t *testing.T) {
	mem := repository.NewMemory()
	mem.AddHostel(1)
	sink := audit.NewSink(failingAuditStore{}, 1, audit.WithRetryInterval(5*time.Millisecond))
	defer sink.Close()

	svc := NewAuthService(Stores{
		Users: mem, Tokens: mem, Assignments: mem,
		Sessions: mem, Permissions: mem, Hostels: mem,
	}, sink, &captureNotifier{}, config.Config{
		JWTSecret: "test-secret", AccessTTL: time.Minute, RefreshTTL: time.Hour,
		ResetTTL: time.Hour, BcryptCost: 4,
	})
	svc.credentialDelay = func() {}

	sink.Record(model.AuditRecord{Action: "X"})
	require.Eventually(t, func() bool { return !sink.Healthy() }, time.Second, time.Millisecond)

	ctx := context.Background()
	_, err := svc.Login(ctx, "anyone", testPassword, noClient)
	assert.ErrorIs(t, err, ErrDegraded)
	_, err = svc.Refresh(ctx, "token", noClient)
	assert.ErrorIs(t, err, ErrDegraded)
	_, err = svc.Register(ctx, RegisterInput{Email: "x@example.com", Username: "x", Password: testPassword}, noClient)
	assert.ErrorIs(t, err, ErrDegraded)
	assert.ErrorIs(t, svc.Logout(ctx, 1, noClient), ErrDegraded)
	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "x@example.com", noClient), ErrDegraded)
}

func TestRecordLogsDroppedAudit(t *testing.T) {
	mem := repository.NewMemory()
	sink := audit.NewSink(failingAuditStore{}, 1, audit.WithRetryInterval(time.Hour))
	defer sink.Close()

	svc := NewAuthService(Stores{
		Users: mem, Tokens: mem, Assignments: mem,
		Sessions: mem, Permissions: mem, Hostels: mem,
	}, sink, &captureNotifier{}, config.Config{JWTSecret: "test-secret", BcryptCost: 4})

	// One record sticks in the retrying flusher, the next fills the
	// queue; anything the facade emits after that is rejected.
	sink.Record(model.AuditRecord{Action: "X"})
	sink.Record(model.AuditRecord{Action: "X"})
	require.Eventually(t, func() bool { return !sink.Healthy() }, time.Second, time.Millisecond)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	svc.record(1, nil, model.AuditLogin, "session", "", noClient)
	assert.Contains(t, buf.String(), "dropped record")
	assert.Contains(t, buf.String(), model.AuditLogin)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.addUser(t, model.RoleStudent, 1)

	_, err := f.svc.Login(ctx, u.Email, testPassword, noClient)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, u.Email, "wrong", noClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.NoError(t, f.svc.Logout(ctx, u.ID, noClient))

	actions := f.auditActions()
	assert.Equal(t, []string{model.AuditLogin, model.AuditLoginFailed, model.AuditLogout}, actions)
}
