package middleware

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/metrics"
)

// RequestLogger logs one zerolog line per request and feeds the HTTP
// Prometheus collectors.  Routes are labelled by their pattern so ids do
// not explode metric cardinality.
func RequestLogger() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // Let the error handler write the response so the status is known.
                c.Error(err)
            }

            req, res := c.Request(), c.Response()
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            took := time.Since(start)
            code := strconv.Itoa(res.Status)
            metrics.HTTPRequests.WithLabelValues(route, req.Method, code).Inc()
            metrics.HTTPDuration.WithLabelValues(route, req.Method).Observe(took.Seconds())

            ev := logging.Ctx(req.Context()).Info()
            switch {
            case res.Status >= 500:
                ev = logging.Ctx(req.Context()).Error().Err(err)
            case res.Status >= 400:
                ev = logging.Ctx(req.Context()).Warn()
            }
            ev.Str("method", req.Method).
                Str("path", req.URL.Path).
                Str("route", route).
                Int("status", res.Status).
                Int64("bytes", res.Size).
                Dur("took", took).
                Str("ip", c.RealIP()).
                Str("user", userID(c)).
                Msg("request")
            return nil
        }
    }
}
