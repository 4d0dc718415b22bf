package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := With(context.Background(), Session{UserID: 3, Role: "user", RequestID: "r1"})
	s, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), s.UserID)
	assert.Equal(t, "r1", s.RequestID)
}

func TestAccessRules(t *testing.T) {
	user := Session{UserID: 3, Role: "user"}
	admin := Session{UserID: 9, Role: "admin"}

	assert.True(t, user.CanAccess(3))
	assert.False(t, user.CanAccess(4))
	assert.True(t, admin.CanAccess(4))
	assert.False(t, Anonymous.CanAccess(0))
	assert.False(t, Session{Role: "admin"}.IsAdmin())
}
