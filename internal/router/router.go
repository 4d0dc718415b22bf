package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/evently/internal/handler"
    "github.com/iliyamo/evently/internal/middleware"
)

// Limits holds the rate limiting middleware applied to groups of routes.
// Nil entries are skipped.
type Limits struct {
    Global  echo.MiddlewareFunc // every API request
    Booking echo.MiddlewareFunc // POST /events/:id/book
    Cache   echo.MiddlewareFunc // anonymous GET /events
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, h handler.Health) {
    e.GET("/healthz", h.Check)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers signup, login, token rotation and /auth/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, l Limits) {
    g := e.Group("/auth", skipNil(l.Global)...)
    g.POST("/signup", a.Signup)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)
    g.POST("/logout", a.Logout)
    g.GET("/me", a.Me, middleware.RequireAuth())
}

// RegisterPublic registers the event catalogue, seat maps and the event
// stream.  Callers may be anonymous; a valid token is still honoured.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, st *handler.StreamHandler, l Limits) {
    g := e.Group("/events", skipNil(l.Global)...)
    g.GET("", ev.List, skipNil(l.Cache)...)
    g.GET("/:id", ev.Get)
    g.GET("/:id/seats", ev.SeatMap)
    // streams are long lived and stay outside the limiter
    e.GET("/events/:id/stream", st.Event)
}

// RegisterBookings registers the authenticated booking endpoints.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, st *handler.StreamHandler, l Limits) {
    auth := middleware.RequireAuth()

    book := append([]echo.MiddlewareFunc{auth}, skipNil(l.Global, l.Booking)...)
    e.POST("/events/:id/book", b.Book, book...)

    me := e.Group("/me", auth)
    me.GET("/bookings", b.Mine, skipNil(l.Global)...)
    me.GET("/stream", st.Mine)

    g := e.Group("/bookings", append([]echo.MiddlewareFunc{auth}, skipNil(l.Global)...)...)
    g.GET("/:id", b.Get)
    g.DELETE("/:id", b.Cancel)
}

// RegisterAdmin registers the admin console under /admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, l Limits) {
    g := e.Group("/admin", append([]echo.MiddlewareFunc{middleware.RequireAdmin()}, skipNil(l.Global)...)...)

    g.POST("/events", a.CreateEvent)
    g.PATCH("/events/:id", a.UpdateEvent)
    g.POST("/events/:id/deactivate", a.DeactivateEvent)
    g.DELETE("/events/:id", a.DeleteEvent)
    g.POST("/events/:id/seats/generate", a.GenerateSeats)

    g.GET("/users", a.ListUsers)
    g.POST("/users", a.CreateUser)
    g.PATCH("/users/:id/role", a.UpdateUserRole)

    g.GET("/analytics/summary", a.Summary)
}

func skipNil(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
    out := make([]echo.MiddlewareFunc, 0, len(mw))
    for _, m := range mw {
        if m != nil {
            out = append(out, m)
        }
    }
    return out
}
