package middleware // middleware provides shared request processing for handlers

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireAdmin enforces that the session belongs to an admin.  Anonymous
// callers get 401, authenticated non-admins 403.  It assumes Session ran
// earlier in the chain.
func RequireAdmin() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            sess := current(c)
            if !sess.Authenticated() {
                return deny(c, http.StatusUnauthorized, "authentication required")
            }
            if !sess.IsAdmin() {
                return deny(c, http.StatusForbidden, "admin only")
            }
            return next(c)
        }
    }
}
