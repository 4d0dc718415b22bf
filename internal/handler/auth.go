package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/service"
)

// AuthHandler serves signup, login and token endpoints.
type AuthHandler struct {
    Accounts *service.Accounts
}

func NewAuthHandler(a *service.Accounts) *AuthHandler {
    return &AuthHandler{Accounts: a}
}

type loginReq struct {
    Email    string `json:"email" validate:"required"`
    Password string `json:"password" validate:"required"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token" validate:"required"`
}

// Signup: POST /auth/signup creates a regular user.
func (h *AuthHandler) Signup(c echo.Context) error {
    var req service.SignupInput
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Accounts.Signup(ctx, req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, u)
}

// Login: POST /auth/login returns an access and a refresh token.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pair, err := h.Accounts.Login(ctx, req.Email, req.Password)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, pair)
}

// Refresh: POST /auth/refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pair, err := h.Accounts.Refresh(ctx, req.RefreshToken)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, pair)
}

// Logout: POST /auth/logout revokes the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    if err := h.Accounts.Logout(c.Request().Context(), req.RefreshToken); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Me: GET /auth/me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
    u, err := h.Accounts.Me(c.Request().Context(), sess(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}
