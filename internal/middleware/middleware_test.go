package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/ratelimit"
	"github.com/iliyamo/hostel-management/internal/utils"
)

const testSecret = "middleware-test-secret"

func doRequest(e *echo.Echo, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newProtectedEcho(capture *echo.Context) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		if capture != nil {
			*capture = c
		}
		return c.String(http.StatusOK, "ok")
	}, JWTAuth(testSecret))
	return e
}

func TestJWTAuthSetsClaims(t *testing.T) {
	var captured echo.Context
	e := newProtectedEcho(&captured)

	tok, err := utils.NewAccessToken(testSecret, 42, "admin", 7, time.Minute)
	require.NoError(t, err)

	rec := doRequest(e, "Bearer "+tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), captured.Get(CtxUserID))
	assert.Equal(t, "admin", captured.Get(CtxRole))
	assert.Equal(t, int64(7), captured.Get(CtxHostelID))
}

func TestJWTAuthRejections(t *testing.T) {
	e := newProtectedEcho(nil)

	rec := doRequest(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(e, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	expired, err := utils.NewAccessToken(testSecret, 1, "student", 0, -time.Minute)
	require.NoError(t, err)
	rec = doRequest(e, "Bearer "+expired.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")

	other, err := utils.NewAccessToken("other-secret", 1, "student", 0, time.Minute)
	require.NoError(t, err)
	rec = doRequest(e, "Bearer "+other.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, JWTAuth(testSecret), RequireRole("super_admin"))

	super, err := utils.NewAccessToken(testSecret, 1, "super_admin", 0, time.Minute)
	require.NoError(t, err)
	rec := doRequest(e, "Bearer "+super.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	student, err := utils.NewAccessToken(testSecret, 2, "student", 0, time.Minute)
	require.NoError(t, err)
	rec = doRequest(e, "Bearer "+student.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	store := ratelimit.NewMemoryStoreAt(func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	})
	cfg := config.RateLimitConfig{Enabled: true}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, RateLimit(cfg, store, "login", config.Window{Limit: 2, Per: time.Minute}))

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := hit()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit()
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = hit()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, RateLimit(config.RateLimitConfig{Enabled: false}, nil, "login", config.Window{Limit: 1, Per: time.Minute}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:1234"
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "ip:192.0.2.9", clientKey(c))

	c.Set(CtxUserID, int64(17))
	assert.Equal(t, "u:17", clientKey(c))
}
