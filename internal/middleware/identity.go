package middleware

// identity.go holds helpers shared across middleware files for reading the
// caller from the request.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/session"
)

// current returns the request's session, or Anonymous before Session ran.
func current(c echo.Context) session.Session {
    s, _ := session.FromContext(c.Request().Context())
    return s
}

// userID returns the caller's id for keying limits, or "anon".
func userID(c echo.Context) string {
    if s := current(c); s.Authenticated() {
        return strconv.FormatUint(s.UserID, 10)
    }
    return "anon"
}
