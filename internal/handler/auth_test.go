package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/audit"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/handler"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/notify"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/router"
	"github.com/iliyamo/hostel-management/internal/service"
	"github.com/iliyamo/hostel-management/internal/utils"
)

const testPassword = "Sturdy!Pass#42x"

type api struct {
	e   *echo.Echo
	mem *repository.Memory
}

func newAPI(t *testing.T) *api {
	t.Helper()
	mem := repository.NewMemory()
	mem.AddHostel(1)
	mem.AddHostel(2)
	sink := audit.NewSink(mem, 64)
	t.Cleanup(sink.Close)

	cfg := config.Config{
		JWTSecret:  "handler-test-secret",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   time.Hour,
		BcryptCost: 4,
	}
	svc := service.NewAuthService(service.Stores{
		Users: mem, Tokens: mem, Assignments: mem,
		Sessions: mem, Permissions: mem, Hostels: mem,
	}, sink, notify.New(""), cfg)

	e := echo.New()
	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(svc),
		Sink:      sink,
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.RateLimitConfig{Enabled: false},
	})
	return &api{e: e, mem: mem}
}

func (a *api) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) addSuperAdmin(t *testing.T) (model.User, string) {
	t.Helper()
	hash, err := utils.HashPassword(testPassword, 4)
	require.NoError(t, err)
	u := model.User{
		Email: "root@example.com", Username: "root",
		PasswordHash: hash, Role: model.RoleSuperAdmin, IsActive: true,
	}
	require.NoError(t, a.mem.Create(context.Background(), &u))

	rec := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": u.Email, "password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return u, body.AccessToken
}

func TestRegisterLoginMeFlow(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":          "dana@example.com",
		"username":       "dana",
		"password":       testPassword,
		"role":           "student",
		"home_hostel_id": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var reg struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "student", reg.User.Role)
	assert.NotEmpty(t, reg.RefreshToken)

	rec = a.do(http.MethodGet, "/api/v1/auth/me", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dana@example.com"`)

	// Wrong password gives a generic 401.
	rec = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "dana@example.com", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestRefreshEndpoint(t *testing.T) {
	a := newAPI(t)
	_, _ = a.addSuperAdmin(t)

	rec := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "root@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = a.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The rotated-out token is now invalid.
	rec = a.do(http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminEndpointsRequireSuperAdmin(t *testing.T) {
	a := newAPI(t)
	_, superTok := a.addSuperAdmin(t)

	rec := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "v@example.com", "username": "v", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	// A visitor is stopped at the role gate.
	rec = a.do(http.MethodPost, "/api/v1/auth/assign-role", reg.AccessToken, map[string]any{
		"user_id": reg.User.ID, "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/auth/assign-role", superTok, map[string]any{
		"user_id": reg.User.ID, "role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := a.mem.GetByID(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
}

func TestSwitchContextEndpoint(t *testing.T) {
	a := newAPI(t)
	_, superTok := a.addSuperAdmin(t)

	rec := a.do(http.MethodPost, "/api/v1/auth/switch-context", superTok, map[string]any{
		"hostel_id": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var sw struct {
		AccessToken string `json:"access_token"`
		HostelID    int64  `json:"hostel_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sw))
	assert.Equal(t, int64(2), sw.HostelID)

	claims, err := utils.ParseAccessToken("handler-test-secret", sw.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(2), claims.HostelID)

	rec = a.do(http.MethodPost, "/api/v1/auth/switch-context", superTok, map[string]any{
		"hostel_id": 99,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/api/v1/auth/password-strength?password="+url.QueryEscape(testPassword), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Strength string `json:"strength"`
		Score    int    `json:"score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "strong", res.Strength)

	rec = a.do(http.MethodGet, "/api/v1/auth/password-strength", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRolesEndpoint(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/api/v1/auth/roles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, role := range model.Roles {
		assert.Contains(t, rec.Body.String(), fmt.Sprintf("%q", role))
	}
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
