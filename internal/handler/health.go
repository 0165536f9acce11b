package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything that can report whether it is reachable.
type Pinger func(ctx context.Context) error

// Health answers "ok" while every named dependency responds to a ping within
// two seconds, and 503 with the failing names otherwise.
func Health(checks map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		down := map[string]string{}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				down[name] = err.Error()
			}
		}
		if len(down) > 0 {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "down": down})
		}
		return c.String(http.StatusOK, "ok")
	}
}
