package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/service"
)

// AdminHandler serves the admin console: events, seat grids, users and
// analytics.  Routes are guarded by RequireAdmin and the services check
// the session again.
type AdminHandler struct {
    Catalog   *service.Catalog
    Seats     *service.SeatInventory
    Accounts  *service.Accounts
    Analytics *service.Analytics
}

type gridReq struct {
    Rows int `json:"rows" validate:"required,min=1,max=26"`
    Cols int `json:"cols" validate:"required,min=1,max=200"`
}

// CreateEvent: POST /admin/events
func (h *AdminHandler) CreateEvent(c echo.Context) error {
    var req service.EventInput
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    ev, err := h.Catalog.Create(c.Request().Context(), sess(c), req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, ev)
}

// UpdateEvent: PATCH /admin/events/:id
func (h *AdminHandler) UpdateEvent(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    var req service.EventPatch
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    ev, err := h.Catalog.Update(c.Request().Context(), sess(c), id, req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, ev)
}

// DeactivateEvent: POST /admin/events/:id/deactivate
func (h *AdminHandler) DeactivateEvent(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    ev, err := h.Catalog.Deactivate(c.Request().Context(), sess(c), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, ev)
}

// DeleteEvent: DELETE /admin/events/:id
func (h *AdminHandler) DeleteEvent(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    if err := h.Catalog.Delete(c.Request().Context(), sess(c), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// GenerateSeats: POST /admin/events/:id/seats/generate {rows, cols}
func (h *AdminHandler) GenerateSeats(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    var req gridReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    res, err := h.Seats.GenerateGrid(c.Request().Context(), sess(c), id, req.Rows, req.Cols)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// Summary: GET /admin/analytics/summary?refresh=true
func (h *AdminHandler) Summary(c echo.Context) error {
    refresh := c.QueryParam("refresh") == "true" || c.QueryParam("refresh") == "1"
    s, err := h.Analytics.Summary(c.Request().Context(), refresh)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, s)
}
