package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/middleware"
	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/service"
	"github.com/iliyamo/hostel-management/internal/utils"
)

// AuthHandler exposes the auth facade over HTTP. All business rules
// live in the service; handlers only parse, delegate and serialize.
type AuthHandler struct {
	Svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

// ----- DTOs -----

type registerReq struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Role         string `json:"role"` // visitor | student
	HomeHostelID int64  `json:"home_hostel_id"`
}
type loginReq struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type assignRoleReq struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}
type switchContextReq struct {
	HostelID int64 `json:"hostel_id"`
}
type assignHostelsReq struct {
	AdminID   int64   `json:"admin_id"`
	HostelIDs []int64 `json:"hostel_ids"`
	Level     string  `json:"level"`
}
type revokeHostelReq struct {
	AdminID  int64 `json:"admin_id"`
	HostelID int64 `json:"hostel_id"`
}
type resetRequestReq struct {
	Email string `json:"email"`
}
type resetConfirmReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type userPart struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	HomeHostelID *int64 `json:"home_hostel_id,omitempty"`
}
type tokenResp struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         userPart  `json:"user"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role, HomeHostelID: u.HomeHostelID}
}

func toTokenResp(r *service.AuthResult) tokenResp {
	return tokenResp{
		AccessToken:  r.Access.Token,
		RefreshToken: r.Refresh.Raw, // raw back to client, only the hash is stored
		TokenType:    "bearer",
		ExpiresAt:    r.Access.Exp,
		User:         toUserPart(r.User),
	}
}

func clientInfo(c echo.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

// writeErr maps facade errors onto HTTP responses. Storage failures are
// 503, never 401/403, so clients can distinguish "try again" from "you
// may not".
func writeErr(c echo.Context, err error) error {
	var authzErr *service.AuthzError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, utils.ErrExpiredToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
	case errors.Is(err, utils.ErrWrongTokenType):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "wrong token type"})
	case errors.Is(err, utils.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	case errors.As(err, &authzErr):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "reason": authzErr.Reason})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrDegraded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "degraded", "message": "writes temporarily refused"})
	case errors.Is(err, service.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// currentUser loads the authenticated user from the claims JWTAuth put
// in the context.
func (h *AuthHandler) currentUser(c echo.Context) (model.User, error) {
	id, _ := c.Get(middleware.CtxUserID).(int64)
	if id == 0 {
		return model.User{}, service.ErrInvalidCredentials
	}
	return h.Svc.GetUser(c.Request().Context(), id)
}

// Register creates a visitor or student account and returns tokens.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/username/password required"})
	}
	res, err := h.Svc.Register(c.Request().Context(), service.RegisterInput{
		Email:        req.Email,
		Username:     req.Username,
		Phone:        strings.TrimSpace(req.Phone),
		Password:     req.Password,
		Role:         strings.TrimSpace(req.Role),
		HomeHostelID: req.HomeHostelID,
	}, clientInfo(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, toTokenResp(res))
}

// Login accepts email, phone or username plus a password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	identifier := strings.TrimSpace(req.Email)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Phone)
	}
	if identifier == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "identifier/password required"})
	}
	res, err := h.Svc.Login(c.Request().Context(), identifier, req.Password, clientInfo(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(res))
}

// Refresh rotates the presented refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	res, err := h.Svc.Refresh(c.Request().Context(), strings.TrimSpace(req.RefreshToken), clientInfo(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toTokenResp(res))
}

// Logout revokes all of the caller's refresh tokens (bearer required).
func (h *AuthHandler) Logout(c echo.Context) error {
	id, _ := c.Get(middleware.CtxUserID).(int64)
	if id == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Svc.Logout(c.Request().Context(), id, clientInfo(c)); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile, active context and permissions.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	p, err := h.Svc.Me(c.Request().Context(), u)
	if err != nil {
		return writeErr(c, err)
	}
	perms := make([]echo.Map, 0, len(p.Permissions))
	for _, pm := range p.Permissions {
		perms = append(perms, echo.Map{"name": pm.Name, "resource": pm.Resource, "action": pm.Action})
	}
	resp := echo.Map{
		"user":        toUserPart(p.User),
		"permissions": perms,
	}
	if p.ActiveHostelID > 0 {
		resp["active_hostel_id"] = p.ActiveHostelID
	}
	if p.Level != "" {
		resp["permission_level"] = p.Level
	}
	return c.JSON(http.StatusOK, resp)
}

type updateProfileReq struct {
	Username     *string `json:"username"`
	Phone        *string `json:"phone"`
	HomeHostelID *int64  `json:"home_hostel_id"`
}

// UpdateProfile changes the caller's own username, phone or (for
// students) home hostel. Absent fields stay untouched.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == nil && req.Phone == nil && req.HomeHostelID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	updated, err := h.Svc.UpdateProfile(c.Request().Context(), caller, repository.ProfileUpdate{
		Username:     req.Username,
		Phone:        req.Phone,
		HomeHostelID: req.HomeHostelID,
	}, clientInfo(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(updated)})
}

// AssignRole changes a user's role (super_admin only; the role
// middleware already gates this route, the facade checks again).
func (h *AuthHandler) AssignRole(c echo.Context) error {
	var req assignRoleReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/role required"})
	}
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Svc.AssignRole(c.Request().Context(), caller, req.UserID, req.Role, clientInfo(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// SwitchContext moves the caller's active context and returns a new
// access token bound to the hostel.
func (h *AuthHandler) SwitchContext(c echo.Context) error {
	var req switchContextReq
	if err := c.Bind(&req); err != nil || req.HostelID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hostel_id required"})
	}
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	access, err := h.Svc.SwitchContext(c.Request().Context(), caller, req.HostelID, clientInfo(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": access.Token,
		"token_type":   "bearer",
		"expires_at":   access.Exp,
		"hostel_id":    req.HostelID,
	})
}

// ClearContext drops the caller's active context.
func (h *AuthHandler) ClearContext(c echo.Context) error {
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	access, err := h.Svc.ClearContext(c.Request().Context(), caller, clientInfo(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": access.Token,
		"token_type":   "bearer",
		"expires_at":   access.Exp,
	})
}

// AssignHostels maps an admin onto hostels (super_admin only).
func (h *AuthHandler) AssignHostels(c echo.Context) error {
	var req assignHostelsReq
	if err := c.Bind(&req); err != nil || req.AdminID == 0 || len(req.HostelIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "admin_id/hostel_ids required"})
	}
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Svc.AssignHostels(c.Request().Context(), caller, req.AdminID, req.HostelIDs, req.Level, clientInfo(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// RevokeHostel removes one admin<->hostel assignment (super_admin only).
func (h *AuthHandler) RevokeHostel(c echo.Context) error {
	var req revokeHostelReq
	if err := c.Bind(&req); err != nil || req.AdminID == 0 || req.HostelID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "admin_id/hostel_id required"})
	}
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Svc.RevokeHostel(c.Request().Context(), caller, req.AdminID, req.HostelID, clientInfo(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Deactivate disables an account and kills its sessions (super_admin
// only).
func (h *AuthHandler) Deactivate(c echo.Context) error {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	caller, err := h.currentUser(c)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Svc.Deactivate(c.Request().Context(), caller, req.UserID, clientInfo(c)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// PasswordResetRequest always answers 202 to prevent account
// enumeration; the mail only goes out when the account exists.
func (h *AuthHandler) PasswordResetRequest(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	if err := h.Svc.RequestPasswordReset(c.Request().Context(), strings.TrimSpace(req.Email), clientInfo(c)); err != nil {
		// Degraded/unavailable still must not reveal account state, but
		// a 5xx here carries no enumeration signal.
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// PasswordResetConfirm consumes a reset token and sets the new password.
func (h *AuthHandler) PasswordResetConfirm(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token/new_password required"})
	}
	if err := h.Svc.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword, clientInfo(c)); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PasswordStrength scores a candidate password without storing it.
func (h *AuthHandler) PasswordStrength(c echo.Context) error {
	pw := c.QueryParam("password")
	if pw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	return c.JSON(http.StatusOK, utils.PasswordStrength(pw))
}

// Roles returns the closed role enumeration.
func (h *AuthHandler) Roles(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"roles": model.Roles})
}
