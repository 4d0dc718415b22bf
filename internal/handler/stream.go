package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/metrics"
    "github.com/iliyamo/evently/internal/notify"
    "github.com/iliyamo/evently/internal/service"
)

// StreamHandler pushes notifications to clients as server-sent events.
type StreamHandler struct {
    Hub       *notify.Hub
    Catalog   *service.Catalog
    Heartbeat time.Duration
}

// Event: GET /events/:id/stream
//
// Streams event.updated and event.deleted for one event, so open pages can
// refresh remaining capacity without polling.
func (h *StreamHandler) Event(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    if _, err := h.Catalog.Get(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return h.serve(c, func(n notify.Notification) bool {
        return n.EventID == id && n.Event != nil
    })
}

// Mine: GET /me/stream
//
// Streams booking.* notifications for the caller's own bookings, including
// waitlist promotions.
func (h *StreamHandler) Mine(c echo.Context) error {
    s := sess(c)
    if !s.Authenticated() {
        return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "authentication required"})
    }
    return h.serve(c, func(n notify.Notification) bool {
        return n.Booking != nil && n.UserID == s.UserID
    })
}

func (h *StreamHandler) serve(c echo.Context, filter notify.Filter) error {
    sub := h.Hub.Subscribe(filter)
    defer h.Hub.Unsubscribe(sub)
    metrics.StreamSubscribers.Inc()
    defer metrics.StreamSubscribers.Dec()

    beat := h.Heartbeat
    if beat <= 0 {
        beat = 25 * time.Second
    }

    w := c.Response()
    w.Header().Set(echo.HeaderContentType, "text/event-stream")
    w.Header().Set(echo.HeaderCacheControl, "no-cache")
    w.Header().Set(echo.HeaderConnection, "keep-alive")
    w.Header().Set("X-Accel-Buffering", "no")
    w.WriteHeader(http.StatusOK)
    if err := notify.WriteComment(w, "connected"); err != nil {
        return nil
    }
    w.Flush()

    ctx := c.Request().Context()
    ticker := time.NewTicker(beat)
    defer ticker.Stop()

    var seq uint64
    for {
        select {
        case <-ctx.Done():
            return nil
        case n, ok := <-sub.C:
            if !ok {
                return nil
            }
            seq++
            if err := notify.WriteSSE(w, seq, n); err != nil {
                logging.Ctx(ctx).Debug().Err(err).Msg("stream write failed")
                return nil
            }
            w.Flush()
        case <-ticker.C:
            if err := notify.WriteComment(w, "ping"); err != nil {
                return nil
            }
            w.Flush()
        }
    }
}
