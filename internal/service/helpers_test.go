package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/repository/memory"
	"github.com/iliyamo/evently/internal/session"
)

var (
	ctx   = context.Background()
	admin = session.Session{UserID: 1, Role: model.RoleAdmin}
)

func member(id uint64) session.Session {
	return session.Session{UserID: id, Role: model.RoleUser}
}

type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Publish(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Type == typ {
			n++
		}
	}
	return n
}

// clock ticks one millisecond per call so created_at is strictly ordered.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, val []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = val
}

func (c *mapCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.m, k)
	}
}

type fixture struct {
	svc   *Services
	store *memory.Store
	notes *recorder
	cache *mapCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), notes: &recorder{}, cache: &mapCache{m: map[string][]byte{}}}
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.svc = New(f.store, Options{Notifier: f.notes, Cache: f.cache, Now: c.Now})
	return f
}

func (f *fixture) event(t *testing.T, capacity int) model.Event {
	t.Helper()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	ev, err := f.svc.Catalog.Create(ctx, admin, EventInput{
		Name:      "Concert",
		Venue:     "Main Hall",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Capacity:  capacity,
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) book(t *testing.T, user uint64, eventID uint64, qty int, waitlist bool) model.Booking {
	t.Helper()
	b, err := f.svc.Bookings.Book(ctx, member(user), eventID, BookRequest{Qty: qty, Waitlist: waitlist}, "")
	require.NoError(t, err)
	return b
}

func (f *fixture) reload(t *testing.T, eventID uint64) model.Event {
	t.Helper()
	ev, err := f.svc.Catalog.Get(ctx, eventID)
	require.NoError(t, err)
	return ev
}

func (f *fixture) booking(t *testing.T, id uint64) model.Booking {
	t.Helper()
	b, err := f.store.GetBooking(ctx, id)
	require.NoError(t, err)
	return b
}
