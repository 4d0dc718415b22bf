package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/service"
)

// EventHandler serves the public event catalog.
type EventHandler struct {
    Catalog *service.Catalog
    Seats   *service.SeatInventory
}

// List: GET /events?q=&venue=&status=&date_from=&date_to=&sort=&order=&page=&page_size=
func (h *EventHandler) List(c echo.Context) error {
    page, ok := queryInt(c, "page")
    if !ok {
        return badRequest(c, "page must be an integer")
    }
    size, ok := queryInt(c, "page_size")
    if !ok {
        return badRequest(c, "page_size must be an integer")
    }
    res, err := h.Catalog.List(c.Request().Context(), service.EventQuery{
        Q:        c.QueryParam("q"),
        Venue:    c.QueryParam("venue"),
        Status:   c.QueryParam("status"),
        DateFrom: c.QueryParam("date_from"),
        DateTo:   c.QueryParam("date_to"),
        Sort:     c.QueryParam("sort"),
        Order:    c.QueryParam("order"),
        Page:     page,
        PageSize: size,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Get: GET /events/:id
func (h *EventHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    ev, err := h.Catalog.Get(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, ev)
}

// SeatMap: GET /events/:id/seats returns the seat map, 404 before one exists.
func (h *EventHandler) SeatMap(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    seats, err := h.Seats.List(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, seats)
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c echo.Context, name string) (int, bool) {
    raw := c.QueryParam(name)
    if raw == "" {
        return 0, true
    }
    n, err := strconv.Atoi(raw)
    return n, err == nil
}
