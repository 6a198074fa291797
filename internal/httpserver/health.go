package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
)

const readyTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

type Health struct {
	Checks map[string]Check
}

func (h *Health) Live(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func (h *Health) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			logging.FromContext(ctx).Warn("not_ready", "dependency", name, "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
	}
	return c.NoContent(http.StatusNoContent)
}
