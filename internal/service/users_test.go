package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/repository/memory"
	"github.com/iliyamo/evently/internal/session"
	"github.com/iliyamo/evently/internal/utils"
)

func newAccounts() *Accounts {
	return NewAccounts(memory.New(), AuthConfig{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4})
}

func TestSignupAndLogin(t *testing.T) {
	a := newAccounts()

	u, err := a.Signup(ctx, SignupInput{Name: "Ada", Email: " Ada@Example.com ", Password: "secret1", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role, "signup never grants admin")

	_, err = a.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = a.Signup(ctx, SignupInput{Name: "Bob", Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = a.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = a.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	pair, err := a.Login(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.RefreshToken)

	id, role, err := utils.ParseAccessToken("test-secret", pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, model.RoleUser, role)

	me, err := a.Me(ctx, session.Session{UserID: id, Role: role})
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	a := newAccounts()
	_, err := a.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	pair, err := a.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	next, err := a.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized, "rotated token is revoked")

	require.NoError(t, a.Logout(ctx, next.RefreshToken))
	_, err = a.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAdminUserManagement(t *testing.T) {
	a := newAccounts()
	require.NoError(t, a.EnsureAdmin(ctx, "root@example.com", "rootpass"))
	require.NoError(t, a.EnsureAdmin(ctx, "root@example.com", "rootpass"))

	admins, err := a.List(ctx, admin, model.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	root := session.Session{UserID: admins[0].ID, Role: model.RoleAdmin}

	u, err := a.CreateUser(ctx, root, SignupInput{Name: "Eve", Email: "eve@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)

	_, err = a.List(ctx, member(u.ID), "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = a.List(ctx, root, "owner")
	assert.ErrorIs(t, err, ErrValidation)

	promoted, err := a.UpdateRole(ctx, root, u.ID, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, promoted.Role)

	_, err = a.UpdateRole(ctx, root, root.UserID, model.RoleUser)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = a.UpdateRole(ctx, root, 999, model.RoleUser)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := a.List(ctx, root, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
