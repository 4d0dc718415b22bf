package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/repository"
	"github.com/iliyamo/evently/internal/session"
	"github.com/iliyamo/evently/internal/utils"
)

// AuthConfig controls token issuing and password hashing.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// SignupInput is the body of a signup or admin user creation.
type SignupInput struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         model.User `json:"user"`
}

// Accounts manages users and their tokens.
type Accounts struct {
	users repository.UserStore
	cfg   AuthConfig
}

// NewAccounts returns the account service.
func NewAccounts(users repository.UserStore, cfg AuthConfig) *Accounts {
	return &Accounts{users: users, cfg: cfg}
}

// Signup registers a regular user.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	in.Role = model.RoleUser
	return a.create(ctx, in)
}

// CreateUser lets an admin add a user of any role.
func (a *Accounts) CreateUser(ctx context.Context, sess session.Session, in SignupInput) (model.User, error) {
	if !sess.IsAdmin() {
		return model.User{}, forbidden("admin only")
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	return a.create(ctx, in)
}

func (a *Accounts) create(ctx context.Context, in SignupInput) (model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return model.User{}, invalid("name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return model.User{}, invalid("email is invalid")
	}
	if len(in.Password) < 6 {
		return model.User{}, invalid("password must be at least 6 characters")
	}
	if in.Role != model.RoleUser && in.Role != model.RoleAdmin {
		return model.User{}, invalid("role must be user or admin")
	}
	hash, err := utils.HashPassword(in.Password, a.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: in.Role}
	if err := a.users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, conflict("email already registered")
		}
		return model.User{}, err
	}
	logging.Ctx(ctx).Info().Uint64("user_id", u.ID).Str("role", u.Role).Msg("user created")
	return u, nil
}

// Login checks credentials and issues a token pair.
func (a *Accounts) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return TokenPair{}, invalid("email and password required")
	}
	u, err := a.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, unauthorized("invalid credentials")
	}
	return a.issue(ctx, u)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// issued.
func (a *Accounts) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, invalid("refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := a.users.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, unauthorized("invalid refresh token")
		}
		return TokenPair{}, err
	}
	if err := a.users.RevokeRefresh(ctx, hash); err != nil {
		return TokenPair{}, err
	}
	u, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, unauthorized("invalid refresh token")
		}
		return TokenPair{}, err
	}
	return a.issue(ctx, u)
}

// Logout revokes a refresh token.  Unknown tokens are ignored.
func (a *Accounts) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid("refresh_token required")
	}
	err := a.users.RevokeRefresh(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (a *Accounts) issue(ctx context.Context, u model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(a.cfg.JWTSecret, u.ID, u.Role, a.cfg.AccessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(a.cfg.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}
	if err := a.users.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access.Token,
		TokenType:    "bearer",
		ExpiresAt:    access.Exp,
		RefreshToken: refresh.Raw,
		User:         u,
	}, nil
}

// Me returns the caller's account.
func (a *Accounts) Me(ctx context.Context, sess session.Session) (model.User, error) {
	if !sess.Authenticated() {
		return model.User{}, unauthorized("authentication required")
	}
	u, err := a.users.GetUserByID(ctx, sess.UserID)
	return u, storeErr(err, "user")
}

// List returns users, optionally filtered by role.
func (a *Accounts) List(ctx context.Context, sess session.Session, role string) ([]model.User, error) {
	if !sess.IsAdmin() {
		return nil, forbidden("admin only")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "" && role != model.RoleUser && role != model.RoleAdmin {
		return nil, invalid("role must be user or admin")
	}
	users, err := a.users.ListUsers(ctx, role)
	if users == nil && err == nil {
		users = []model.User{}
	}
	return users, err
}

// UpdateRole changes a user's role.  Admins cannot demote themselves.
func (a *Accounts) UpdateRole(ctx context.Context, sess session.Session, id uint64, role string) (model.User, error) {
	if !sess.IsAdmin() {
		return model.User{}, forbidden("admin only")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != model.RoleUser && role != model.RoleAdmin {
		return model.User{}, invalid("role must be user or admin")
	}
	if id == sess.UserID && role != model.RoleAdmin {
		return model.User{}, conflict("cannot remove your own admin role")
	}
	if err := a.users.UpdateUserRole(ctx, id, role); err != nil {
		return model.User{}, storeErr(err, "user")
	}
	u, err := a.users.GetUserByID(ctx, id)
	if err != nil {
		return model.User{}, storeErr(err, "user")
	}
	logging.Ctx(ctx).Info().Uint64("user_id", id).Str("role", role).Msg("user role updated")
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing
// account with that email.  It is a no-op when email is empty.
func (a *Accounts) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	u, err := a.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == model.RoleAdmin {
			return nil
		}
		return a.users.UpdateUserRole(ctx, u.ID, model.RoleAdmin)
	case errors.Is(err, repository.ErrNotFound):
		_, err = a.create(ctx, SignupInput{Name: "Administrator", Email: email, Password: password, Role: model.RoleAdmin})
		return err
	}
	return err
}
