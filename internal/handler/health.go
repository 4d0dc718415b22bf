package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Health reports liveness and, when Ping is set, store readiness.
type Health struct {
    Ping func(ctx context.Context) error
}

// Check: GET /healthz
func (h Health) Check(c echo.Context) error {
    if h.Ping != nil {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := h.Ping(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "detail": "database unreachable"})
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
