package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/evently/internal/model"
    "github.com/iliyamo/evently/internal/service"
)

type roleReq struct {
    Role string `json:"role" validate:"required,oneof=user admin"`
}

// ListUsers: GET /admin/users?role=
func (h *AdminHandler) ListUsers(c echo.Context) error {
    users, err := h.Accounts.List(c.Request().Context(), sess(c), c.QueryParam("role"))
    if err != nil {
        return respondError(c, err)
    }
    if users == nil {
        users = []model.User{}
    }
    return c.JSON(http.StatusOK, users)
}

// CreateUser: POST /admin/users
func (h *AdminHandler) CreateUser(c echo.Context) error {
    var req service.SignupInput
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    u, err := h.Accounts.CreateUser(c.Request().Context(), sess(c), req)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, u)
}

// UpdateUserRole: PATCH /admin/users/:id/role {role}
func (h *AdminHandler) UpdateUserRole(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    var req roleReq
    if err := bind(c, &req); err != nil {
        return respondError(c, err)
    }
    u, err := h.Accounts.UpdateRole(c.Request().Context(), sess(c), id, req.Role)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, u)
}
