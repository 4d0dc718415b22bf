// Package session carries the authenticated caller through a request.
//
// The JWT middleware builds a Session from the access token and stores it in
// the request context; handlers pass it explicitly to the services, which
// never read identity from anywhere else.
package session

import (
	"context"

	"github.com/iliyamo/evently/internal/model"
)

// Session describes who is making a request.
type Session struct {
	UserID    uint64
	Role      string
	RequestID string
}

// Anonymous has no user.
var Anonymous = Session{}

func (s Session) Authenticated() bool { return s.UserID != 0 }

func (s Session) IsAdmin() bool { return s.Authenticated() && s.Role == model.RoleAdmin }

// CanAccess reports whether the caller may act on a resource owned by ownerID.
func (s Session) CanAccess(ownerID uint64) bool {
	return s.IsAdmin() || (s.Authenticated() && s.UserID == ownerID)
}

type ctxKey struct{}

// With returns a copy of ctx carrying s.
func With(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by With, or Anonymous.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok {
		return Anonymous, false
	}
	return s, true
}
