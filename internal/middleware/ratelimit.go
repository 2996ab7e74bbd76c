package middleware

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/ratelimit"
)

// RateLimit returns an Echo middleware enforcing one fixed-window rule
// against the given counter store. The client key is the authenticated
// user id when present, otherwise the remote address, so a NATed dorm
// full of students cannot lock each other out once logged in.
//
// A store error fails open: limiting is protection, not a dependency
// the login path is allowed to die on.
func RateLimit(cfg config.RateLimitConfig, store ratelimit.Store, name string, w config.Window) echo.MiddlewareFunc {
	if !cfg.Enabled || store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	rule := ratelimit.Rule{Name: name, Limit: w.Limit, Window: w.Per}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res, err := store.Incr(c.Request().Context(), rule, clientKey(c))
			if err != nil {
				log.Printf("ratelimit: store error for rule %s: %v", name, err)
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
