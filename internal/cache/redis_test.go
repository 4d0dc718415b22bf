package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "evently")
	ctx := context.Background()

	mock.ExpectGet("evently:analytics:summary").RedisNil()
	_, ok := c.Get(ctx, "analytics:summary")
	assert.False(t, ok)

	mock.ExpectSet("evently:analytics:summary", []byte(`{"a":1}`), time.Minute).SetVal("OK")
	c.Set(ctx, "analytics:summary", []byte(`{"a":1}`), time.Minute)

	mock.ExpectGet("evently:analytics:summary").SetVal(`{"a":1}`)
	val, ok := c.Get(ctx, "analytics:summary")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(val))

	mock.ExpectDel("evently:analytics:summary", "evently:other").SetVal(2)
	c.Delete(ctx, "analytics:summary", "other")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendErrorIsAMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "")

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilClientIsNoop(t *testing.T) {
	c := New(nil, "x")
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), time.Second)
	c.Delete(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
