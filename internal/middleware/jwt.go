package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/session"
    "github.com/iliyamo/evently/internal/utils"
)

// Session returns a middleware that turns the bearer access token into a
// session.Session and stores it in the request context.  Requests without a
// token continue as session.Anonymous; a token that is present but invalid
// is rejected with 401 so clients know to refresh.
//
// Browsers cannot set headers on an EventSource, so GET requests may pass
// the token as the access_token query parameter instead.
func Session(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            reqID := c.Response().Header().Get(echo.HeaderXRequestID)
            if reqID == "" {
                reqID = req.Header.Get(echo.HeaderXRequestID)
            }
            sess := session.Session{RequestID: reqID}

            raw := bearer(req.Header.Get(echo.HeaderAuthorization))
            if raw == "" && req.Method == http.MethodGet {
                raw = c.QueryParam("access_token")
            }
            if raw != "" {
                uid, role, err := utils.ParseAccessToken(secret, raw)
                if err != nil {
                    return deny(c, http.StatusUnauthorized, "invalid or expired token")
                }
                sess.UserID, sess.Role = uid, role
            }

            ctx := session.With(req.Context(), sess)
            ctx = logging.WithRequestID(ctx, reqID)
            c.SetRequest(req.WithContext(ctx))
            return next(c)
        }
    }
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !current(c).Authenticated() {
                return deny(c, http.StatusUnauthorized, "authentication required")
            }
            return next(c)
        }
    }
}

func bearer(header string) string {
    const prefix = "bearer "
    if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
        return ""
    }
    return strings.TrimSpace(header[len(prefix):])
}

func deny(c echo.Context, status int, detail string) error {
    return c.JSON(status, echo.Map{"detail": detail})
}
