package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/audit"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/handler"
	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/ratelimit"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Auth      *handler.AuthHandler
	Sink      *audit.Sink
	JWTSecret string
	RateLimit config.RateLimitConfig
	RLStore   ratelimit.Store
}

// Register wires the full HTTP surface. Everything auth-related lives
// under /api/v1/auth; /healthz is for load balancers.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Sink))

	rl := func(name string, w config.Window) echo.MiddlewareFunc {
		return middleware.RateLimit(d.RateLimit, d.RLStore, name, w)
	}

	g := e.Group("/api/v1/auth")

	// Unauthenticated endpoints. The sensitive ones carry their own
	// per-class budgets; login failures count against the caller's IP.
	g.POST("/register", d.Auth.Register, rl("register", d.RateLimit.Register))
	g.POST("/login", d.Auth.Login, rl("login", d.RateLimit.Login))
	g.POST("/refresh", d.Auth.Refresh, rl("default", d.RateLimit.Default))
	g.POST("/password-reset/request", d.Auth.PasswordResetRequest, rl("password_reset", d.RateLimit.PasswordReset))
	g.POST("/password-reset/confirm", d.Auth.PasswordResetConfirm, rl("password_reset", d.RateLimit.PasswordReset))
	g.GET("/password-strength", d.Auth.PasswordStrength, rl("default", d.RateLimit.Default))
	g.GET("/roles", d.Auth.Roles)

	// Bearer-token endpoints.
	auth := g.Group("", middleware.JWTAuth(d.JWTSecret), rl("default", d.RateLimit.Default))
	auth.POST("/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me)
	auth.PATCH("/me", d.Auth.UpdateProfile)

	// Visitors never hold a hostel context; the facade enforces the
	// per-role rules (students only their home hostel, staff only
	// assigned hostels) on top of this coarse gate.
	ctxGrp := auth.Group("", middleware.RequireRole(model.RoleStudent, model.RoleAdmin, model.RoleSupervisor, model.RoleSuperAdmin))
	ctxGrp.POST("/switch-context", d.Auth.SwitchContext)
	ctxGrp.POST("/clear-context", d.Auth.ClearContext)

	// Tenant administration is super_admin only and shares the admin
	// operation budget.
	admin := auth.Group("", middleware.RequireRole(model.RoleSuperAdmin), rl("admin", d.RateLimit.AdminOps))
	admin.POST("/assign-role", d.Auth.AssignRole)
	admin.POST("/assignments", d.Auth.AssignHostels)
	admin.DELETE("/assignments", d.Auth.RevokeHostel)
	admin.POST("/deactivate", d.Auth.Deactivate)
}
