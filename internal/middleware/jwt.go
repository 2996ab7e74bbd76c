package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/utils"
)

// Context keys set by JWTAuth for downstream handlers.
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxHostelID = "hostel_id"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the decoded claims into the request context.
// Handlers access them via c.Get(CtxUserID), c.Get(CtxRole) and
// c.Get(CtxHostelID). The error body distinguishes expired tokens from
// malformed ones so clients know when to refresh.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				switch {
				case errors.Is(err, utils.ErrExpiredToken):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired"})
				case errors.Is(err, utils.ErrWrongTokenType):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "wrong token type"})
				default:
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxHostelID, claims.HostelID)
			return next(c)
		}
	}
}
