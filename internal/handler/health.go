package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hostel-management/internal/audit"
)

// Health reports liveness plus the audit sink state. Load balancers
// treat 200 as up; a degraded sink answers 503 so traffic drains away
// while writes are being refused.
func Health(sink *audit.Sink) echo.HandlerFunc {
	return func(c echo.Context) error {
		if sink != nil && !sink.Healthy() {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "audit": "unavailable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}
