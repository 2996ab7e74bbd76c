package middleware

// identity.go defines helper functions shared across middleware files.
// clientKey derives the identifier rate-limit counters are keyed by:
// the authenticated user id when JWTAuth already ran, otherwise the
// remote address.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// clientKey returns "u:<id>" for authenticated requests and
// "ip:<addr>" otherwise.
func clientKey(c echo.Context) string {
	if v := c.Get(CtxUserID); v != nil {
		if id, ok := v.(int64); ok && id > 0 {
			return "u:" + strconv.FormatInt(id, 10)
		}
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
