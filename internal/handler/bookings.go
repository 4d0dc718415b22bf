package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/model"
    "github.com/iliyamo/evently/internal/service"
)

// IdempotencyHeader carries the client's retry key on POST /events/:id/book.
const IdempotencyHeader = "Idempotency-Key"

// BookingHandler serves booking creation, lookup and cancellation.
type BookingHandler struct {
    Bookings *service.BookingEngine
}

// Book: POST /events/:id/book
//
// Body {qty, waitlist?, seat_ids?}.  A repeated Idempotency-Key returns the
// booking created by the first request.
func (h *BookingHandler) Book(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid event id")
    }
    var req service.BookRequest
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    b, err := h.Bookings.Book(c.Request().Context(), sess(c), id, req, c.Request().Header.Get(IdempotencyHeader))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, b)
}

// Mine: GET /me/bookings
func (h *BookingHandler) Mine(c echo.Context) error {
    items, err := h.Bookings.ListMine(c.Request().Context(), sess(c))
    if err != nil {
        return respondError(c, err)
    }
    if items == nil {
        items = []model.Booking{}
    }
    return c.JSON(http.StatusOK, items)
}

// Get: GET /bookings/:id
func (h *BookingHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    b, err := h.Bookings.Get(c.Request().Context(), sess(c), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Cancel: DELETE /bookings/:id
func (h *BookingHandler) Cancel(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    b, err := h.Bookings.Cancel(c.Request().Context(), sess(c), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}
