package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/repository"
)

var errTxDone = errors.New("memory: transaction already finished")

type tx struct {
	s    *Store
	st   *state
	done bool
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.s.mu.Lock()
	t.s.state = t.st
	t.s.mu.Unlock()
	t.finish()
	return nil
}

// Rollback discards the working copy.  Safe to defer after Commit.
func (t *tx) Rollback() error {
	if !t.done {
		t.finish()
	}
	return nil
}

func (t *tx) finish() {
	t.done = true
	<-t.s.writer
}

func (t *tx) LockEvent(_ context.Context, id uint64) (model.Event, error) {
	e, ok := t.st.events[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return e, nil
}

func (t *tx) InsertEvent(_ context.Context, e *model.Event) error {
	t.st.nextEvent++
	e.ID = t.st.nextEvent
	t.st.events[e.ID] = *e
	return nil
}

func (t *tx) UpdateEvent(_ context.Context, e model.Event) error {
	if _, ok := t.st.events[e.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.events[e.ID] = e
	return nil
}

// DeleteEvent cascades to seats and bookings like the MySQL schema does.
func (t *tx) DeleteEvent(_ context.Context, id uint64) error {
	if _, ok := t.st.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.events, id)
	for sid, seat := range t.st.seats {
		if seat.EventID == id {
			delete(t.st.seats, sid)
		}
	}
	for bid, b := range t.st.bookings {
		if b.EventID == id {
			delete(t.st.bookings, bid)
		}
	}
	return nil
}

func (t *tx) FindBookingByKey(_ context.Context, userID, eventID uint64, key string) (model.Booking, error) {
	return findByKey(t.st, userID, eventID, key)
}

func (t *tx) InsertBooking(_ context.Context, b *model.Booking) error {
	if b.IdempotencyKey != nil {
		if _, err := findByKey(t.st, b.UserID, b.EventID, *b.IdempotencyKey); err == nil {
			return repository.ErrDuplicate
		}
	}
	t.st.nextBooking++
	b.ID = t.st.nextBooking
	stored := *b
	stored.SeatIDs, stored.SeatLabels = nil, nil
	t.st.bookings[b.ID] = stored
	return nil
}

func (t *tx) LockBooking(_ context.Context, id uint64) (model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (t *tx) UpdateBookingStatus(_ context.Context, id uint64, status string) error {
	b, ok := t.st.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	t.st.bookings[id] = b
	return nil
}

func (t *tx) ListWaitlisted(_ context.Context, eventID uint64) ([]model.Booking, error) {
	out := []model.Booking{}
	for _, b := range t.st.bookings {
		if b.EventID == eventID && b.Status == model.BookingWaitlisted {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].CreatedAt.Compare(out[j].CreatedAt); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) CountBookings(_ context.Context, eventID uint64) (int, error) {
	n := 0
	for _, b := range t.st.bookings {
		if b.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (t *tx) LockSeats(_ context.Context, eventID uint64) ([]model.Seat, error) {
	return seatsOf(t.st, eventID), nil
}

func (t *tx) InsertSeats(_ context.Context, seats []model.Seat) error {
	type pos struct {
		event uint64
		row   string
		col   int
	}
	events := make(map[uint64]bool, 1)
	for _, seat := range seats {
		events[seat.EventID] = true
	}
	taken := make(map[pos]bool, len(seats))
	for _, existing := range t.st.seats {
		if events[existing.EventID] {
			taken[pos{existing.EventID, existing.RowLabel, existing.ColNumber}] = true
		}
	}
	for _, seat := range seats {
		p := pos{seat.EventID, seat.RowLabel, seat.ColNumber}
		if taken[p] {
			return repository.ErrDuplicate
		}
		taken[p] = true
	}
	for _, seat := range seats {
		t.st.nextSeat++
		seat.ID = t.st.nextSeat
		seat.Reserved = false
		seat.ReservedBookingID = nil
		t.st.seats[seat.ID] = seat
	}
	return nil
}

func (t *tx) ReserveSeats(_ context.Context, eventID, bookingID uint64, seatIDs []uint64) error {
	for _, id := range seatIDs {
		seat, ok := t.st.seats[id]
		if !ok || seat.EventID != eventID || seat.Reserved {
			return repository.ErrSeatTaken
		}
	}
	for _, id := range seatIDs {
		seat := t.st.seats[id]
		bid := bookingID
		seat.Reserved = true
		seat.ReservedBookingID = &bid
		t.st.seats[id] = seat
	}
	return nil
}

func (t *tx) ReleaseSeats(_ context.Context, bookingID uint64) ([]uint64, error) {
	var ids []uint64
	for id, seat := range t.st.seats {
		if seat.ReservedBookingID != nil && *seat.ReservedBookingID == bookingID {
			seat.Reserved = false
			seat.ReservedBookingID = nil
			t.st.seats[id] = seat
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *tx) DeleteFreeSeats(_ context.Context, eventID uint64, seatIDs []uint64) error {
	for _, id := range seatIDs {
		seat, ok := t.st.seats[id]
		if !ok || seat.EventID != eventID || seat.Reserved {
			return repository.ErrSeatTaken
		}
	}
	for _, id := range seatIDs {
		delete(t.st.seats, id)
	}
	return nil
}
