package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/validation"
)

func ptr[T any](v T) *T { return &v }

func TestCreateEventRules(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	in := EventInput{Name: "Play", Venue: "Stage", StartTime: start, EndTime: start.Add(time.Hour), Capacity: 10}

	_, err := f.svc.Catalog.Create(ctx, member(2), in)
	assert.ErrorIs(t, err, ErrForbidden)

	bad := in
	bad.EndTime = start
	_, err = f.svc.Catalog.Create(ctx, admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = in
	bad.Capacity = 0
	_, err = f.svc.Catalog.Create(ctx, admin, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = in
	bad.Capacity = MaxEventCapacity + 1
	_, err = f.svc.Catalog.Create(ctx, admin, bad)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Error(t, validation.Struct(bad))

	ev, err := f.svc.Catalog.Create(ctx, admin, in)
	require.NoError(t, err)
	assert.Equal(t, model.EventActive, ev.Status)
	assert.Zero(t, ev.BookedCount)
	require.NotNil(t, ev.CreatedBy)
	assert.Equal(t, admin.UserID, *ev.CreatedBy)
	assert.Equal(t, 1, f.notes.count(notify.EventUpdated))
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	for i, name := range []string{"Jazz Night", "Rock Fest", "jazz brunch"} {
		_, err := f.svc.Catalog.Create(ctx, admin, EventInput{
			Name: name, Venue: "Club", StartTime: base.AddDate(0, 0, i), EndTime: base.AddDate(0, 0, i).Add(time.Hour), Capacity: 10,
		})
		require.NoError(t, err)
	}

	page, err := f.svc.Catalog.List(ctx, EventQuery{Q: "JAZZ"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Meta.Total)
	assert.Equal(t, 1, page.Meta.Page)
	assert.Equal(t, DefaultPageSize, page.Meta.PageSize)
	assert.Equal(t, "Jazz Night", page.Items[0].Name)

	page, err = f.svc.Catalog.List(ctx, EventQuery{Sort: "start_time", Order: "desc", PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Meta.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Jazz Night", page.Items[0].Name)

	page, err = f.svc.Catalog.List(ctx, EventQuery{DateFrom: base.Add(time.Hour).Format(time.RFC3339)})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Meta.Total)

	for _, q := range []EventQuery{
		{Sort: "price"},
		{Order: "sideways"},
		{Status: "archived"},
		{PageSize: 101},
		{Page: -1},
		{Page: MaxPage + 1},
		{Page: 9_000_000_000_000_000_000 / 1_000},
		{DateTo: "tomorrow"},
	} {
		_, err := f.svc.Catalog.List(ctx, q)
		assert.ErrorIs(t, err, ErrValidation, "%+v", q)
	}
}

func TestCapacityUpdateIsBounded(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 10)

	_, err := f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Capacity: ptr(MaxEventCapacity + 1)})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 10, f.reload(t, ev.ID).Capacity)

	got, err := f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Capacity: ptr(MaxEventCapacity)})
	require.NoError(t, err)
	assert.Equal(t, MaxEventCapacity, got.Capacity)
}

func TestCapacityCannotDropBelowBooked(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 5)
	f.book(t, 2, ev.ID, 3, false)

	_, err := f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Capacity: ptr(2)})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 5, f.reload(t, ev.ID).Capacity)

	_, err = f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Status: ptr("archived")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Catalog.Update(ctx, member(2), ev.ID, EventPatch{Capacity: ptr(8)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCapacityChangeSyncsSeatMap(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 10)
	f.book(t, 2, ev.ID, 2, false)

	_, err := f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Capacity: ptr(4)})
	require.NoError(t, err)
	seats, err := f.svc.Seats.List(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 4)

	_, err = f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Capacity: ptr(9)})
	require.NoError(t, err)
	seats, err = f.svc.Seats.List(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 9)

	labels := map[string]bool{}
	for _, s := range seats {
		assert.False(t, labels[s.Label], "duplicate label %s", s.Label)
		labels[s.Label] = true
	}
}

func TestCapacityIncreasePromotesWaiters(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 2)
	f.book(t, 2, ev.ID, 2, false)
	w := f.book(t, 3, ev.ID, 1, true)

	updated, err := f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Capacity: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.BookedCount)
	assert.Equal(t, 0, updated.WaitlistedCount)

	promoted := f.booking(t, w.ID)
	assert.Equal(t, model.BookingConfirmed, promoted.Status)
	assert.Len(t, promoted.SeatIDs, 1)
}

func TestInactiveEventsDoNotPromoteUntilReactivated(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 2)
	a := f.book(t, 2, ev.ID, 2, false)
	w := f.book(t, 3, ev.ID, 1, true)

	_, err := f.svc.Catalog.Deactivate(ctx, admin, ev.ID)
	require.NoError(t, err)
	_, err = f.svc.Bookings.Cancel(ctx, member(2), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingWaitlisted, f.booking(t, w.ID).Status)

	promoted, err := f.svc.Waitlist.Promote(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, promoted)

	_, err = f.svc.Catalog.Update(ctx, admin, ev.ID, EventPatch{Status: ptr(model.EventActive)})
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, f.booking(t, w.ID).Status)
	assert.Equal(t, 1, f.reload(t, ev.ID).BookedCount)
}

func TestDeleteEventRules(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 2)
	b := f.book(t, 2, ev.ID, 1, false)

	assert.ErrorIs(t, f.svc.Catalog.Delete(ctx, member(2), ev.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.Catalog.Delete(ctx, admin, ev.ID), ErrConflict)

	_, err := f.svc.Bookings.Cancel(ctx, member(2), b.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Catalog.Delete(ctx, admin, ev.ID))

	_, err = f.svc.Catalog.Get(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Catalog.Delete(ctx, admin, ev.ID), ErrNotFound)
	assert.Equal(t, 1, f.notes.count(notify.EventDeleted))
}

func TestGenerateGrid(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 5)

	_, err := f.svc.Seats.GenerateGrid(ctx, member(2), ev.ID, 2, 3)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Seats.GenerateGrid(ctx, admin, ev.ID, 0, 3)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Seats.GenerateGrid(ctx, admin, ev.ID, 27, 3)
	assert.ErrorIs(t, err, ErrValidation)

	res, err := f.svc.Seats.GenerateGrid(ctx, admin, ev.ID, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Created)
	assert.Equal(t, 6, res.Capacity)

	seats, err := f.svc.Seats.List(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, seats, 6)
	assert.Equal(t, "A1", seats[0].Label)
	assert.Equal(t, "B3", seats[5].Label)

	_, err = f.svc.Seats.GenerateGrid(ctx, admin, ev.ID, 2, 3)
	assert.ErrorIs(t, err, ErrConflict)

	b := f.book(t, 2, ev.ID, 4, false)
	assert.Equal(t, []string{"A1", "A2", "A3", "B1"}, b.SeatLabels)
}

func TestSweepPromotesStrandedWaiters(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 2)

	// A waiter left behind with free capacity, as after a crash between
	// commit and promotion.
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	w := model.Booking{UserID: 3, EventID: ev.ID, Qty: 2, Status: model.BookingWaitlisted, CreatedAt: time.Now().UTC()}
	require.NoError(t, tx.InsertBooking(ctx, &w))
	locked, err := tx.LockEvent(ctx, ev.ID)
	require.NoError(t, err)
	locked.WaitlistedCount = 1
	require.NoError(t, tx.UpdateEvent(ctx, locked))
	require.NoError(t, tx.Commit())

	n, err := f.svc.Waitlist.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.BookingConfirmed, f.booking(t, w.ID).Status)

	got := f.reload(t, ev.ID)
	assert.Equal(t, 2, got.BookedCount)
	assert.Equal(t, 0, got.WaitlistedCount)

	n, err = f.svc.Waitlist.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
