package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/service"
    "github.com/iliyamo/evently/internal/session"
    "github.com/iliyamo/evently/internal/validation"
)

// statusOf maps a service error kind to its HTTP status.
func statusOf(err error) int {
    switch {
    case errors.Is(err, service.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, service.ErrConflict):
        return http.StatusConflict
    case errors.Is(err, service.ErrUnauthorized):
        return http.StatusUnauthorized
    case errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden
    case errors.Is(err, service.ErrValidation):
        return http.StatusBadRequest
    case errors.Is(err, service.ErrRateLimited):
        return http.StatusTooManyRequests
    }
    return http.StatusInternalServerError
}

// respondError writes err as {"detail": ...}.  Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c echo.Context, err error) error {
    var ve *validation.Error
    if errors.As(err, &ve) {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"detail": ve.Error(), "fields": ve.Fields})
    }
    status := statusOf(err)
    if status == http.StatusInternalServerError {
        logging.Ctx(c.Request().Context()).Error().Err(err).
            Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
        return c.JSON(status, echo.Map{"detail": "internal error"})
    }
    return c.JSON(status, echo.Map{"detail": service.Detail(err)})
}

// HTTPErrorHandler renders framework errors (unknown route, bad method,
// panics caught by Recover) in the same {"detail"} shape.
func HTTPErrorHandler(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }
    var he *echo.HTTPError
    if errors.As(err, &he) {
        detail := http.StatusText(he.Code)
        if msg, ok := he.Message.(string); ok && msg != "" {
            detail = msg
        }
        if c.Request().Method == http.MethodHead {
            _ = c.NoContent(he.Code)
            return
        }
        _ = c.JSON(he.Code, echo.Map{"detail": detail})
        return
    }
    _ = respondError(c, err)
}

func badRequest(c echo.Context, detail string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"detail": detail})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

var errBadBody = &service.Error{Kind: service.ErrValidation, Detail: "invalid body"}

// bind decodes and validates the request body into v.  The returned error
// is meant for respondError.
func bind(c echo.Context, v interface{}) error {
    if err := c.Bind(v); err != nil {
        return errBadBody
    }
    return c.Validate(v)
}

// sess returns the caller's session as set by the session middleware.
func sess(c echo.Context) session.Session {
    s, _ := session.FromContext(c.Request().Context())
    return s
}
