package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/go-redis/redismock/v9"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/evently/internal/config"
    "github.com/iliyamo/evently/internal/handler"
    "github.com/iliyamo/evently/internal/model"
    "github.com/iliyamo/evently/internal/service"
    "github.com/iliyamo/evently/internal/session"
    "github.com/iliyamo/evently/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, uid uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, uid, role, 5)
    require.NoError(t, err)
    return tok.Token
}

func whoami(c echo.Context) error {
    s, _ := session.FromContext(c.Request().Context())
    return c.JSON(http.StatusOK, echo.Map{"user_id": s.UserID, "role": s.Role})
}

func serve(e *echo.Echo, method, path, bearerToken string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if bearerToken != "" {
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearerToken)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestSessionMiddleware(t *testing.T) {
    e := echo.New()
    e.Use(Session(secret))
    e.GET("/open", whoami)
    e.GET("/private", whoami, RequireAuth())
    e.GET("/admin", whoami, RequireAdmin())

    rec := serve(e, http.MethodGet, "/open", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":0,"role":""}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/open", "garbage")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.Contains(t, rec.Body.String(), `"detail"`)

    rec = serve(e, http.MethodGet, "/private", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = serve(e, http.MethodGet, "/private", token(t, 7, model.RoleUser))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":7,"role":"user"}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/admin", token(t, 7, model.RoleUser))
    assert.Equal(t, http.StatusForbidden, rec.Code)
    rec = serve(e, http.MethodGet, "/admin", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    rec = serve(e, http.MethodGet, "/admin", token(t, 1, model.RoleAdmin))
    assert.Equal(t, http.StatusOK, rec.Code)

    rec = serve(e, http.MethodGet, "/private?access_token="+token(t, 9, model.RoleUser), "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":9,"role":"user"}`, rec.Body.String())
}

func TestLocalTokenBucket(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            10 * time.Minute,
        KeyStrategy:    "user_route",
        Prefix:         "rl",
    }
    e := echo.New()
    e.HTTPErrorHandler = handler.HTTPErrorHandler
    e.Use(Session(secret))
    e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, nil))

    alice := token(t, 1, model.RoleUser)
    assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/book", alice).Code)
    assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/book", alice).Code)

    rec := serve(e, http.MethodPost, "/book", alice)
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
    assert.Contains(t, rec.Body.String(), "rate limit exceeded")

    // Buckets are per user.
    assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/book", token(t, 2, model.RoleUser)).Code)
}

func TestLimiterReturnsRateLimitedError(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       1,
        RefillTokens:   1,
        RefillInterval: time.Minute,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip",
        Prefix:         "rl",
    }
    h := NewTokenBucket(cfg, nil)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
    e := echo.New()

    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    require.NoError(t, h(c))

    rec := httptest.NewRecorder()
    c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
    err := h(c)
    require.ErrorIs(t, err, service.ErrRateLimited)
    assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestDisabledLimiterPassesThrough(t *testing.T) {
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
        NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))
    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
    }
}

func TestResponseCacheHit(t *testing.T) {
    db, mock := redismock.NewClientMock()
    cfg := config.CacheConfig{
        Enabled:     true,
        Methods:     map[string]bool{http.MethodGet: true},
        TTL:         time.Second,
        KeyStrategy: "route_query",
        Prefix:      "evently:cache",
    }
    e := echo.New()
    e.Use(Session(secret))
    calls := 0
    e.GET("/events", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"items": []int{}})
    }, NewRedisCache(cfg, db))

    key := cacheKeyFrom(cfg, e.NewContext(httptest.NewRequest(http.MethodGet, "/events?page=1", nil), httptest.NewRecorder()))
    hdr := http.Header{}
    hdr.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    payload, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":["cached"]}`))
    require.NoError(t, err)
    mock.ExpectGet(key).SetVal(string(payload))

    rec := serve(e, http.MethodGet, "/events?page=1", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"items":["cached"]}`, rec.Body.String())
    assert.Zero(t, calls)
    require.NoError(t, mock.ExpectationsWereMet())

    // Authenticated callers skip the cache entirely.
    rec = serve(e, http.MethodGet, "/events?page=1", token(t, 3, model.RoleUser))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, 1, calls)
}

func TestDecodePayloadRejectsShortInput(t *testing.T) {
    _, _, _, ok := decodePayload([]byte{0, 0, 0})
    assert.False(t, ok)
}
