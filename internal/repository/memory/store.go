// Package memory is an in-process implementation of the repository
// contracts.  Transactions are fully serialised: Begin takes a single
// writer slot and works on a private copy of the committed state, which
// Commit publishes atomically.  It backs STORE_DRIVER=memory and the
// engine tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/repository"
)

type state struct {
	nextEvent, nextSeat, nextBooking uint64

	events   map[uint64]model.Event
	seats    map[uint64]model.Seat
	bookings map[uint64]model.Booking
}

func (st *state) clone() *state {
	c := &state{
		nextEvent:   st.nextEvent,
		nextSeat:    st.nextSeat,
		nextBooking: st.nextBooking,
		events:      make(map[uint64]model.Event, len(st.events)),
		seats:       make(map[uint64]model.Seat, len(st.seats)),
		bookings:    make(map[uint64]model.Booking, len(st.bookings)),
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	for k, v := range st.seats {
		c.seats[k] = v
	}
	for k, v := range st.bookings {
		c.bookings[k] = v
	}
	return c
}

type refreshToken struct {
	userID  uint64
	expires time.Time
	revoked bool
}

// Store implements repository.Store and repository.UserStore.
type Store struct {
	writer chan struct{} // one open transaction at a time

	mu    sync.RWMutex // guards state
	state *state

	usersMu  sync.RWMutex
	nextUser uint64
	users    map[uint64]model.User
	tokens   map[string]refreshToken
}

var (
	_ repository.Store     = (*Store)(nil)
	_ repository.UserStore = (*Store)(nil)
	_ repository.Tx        = (*tx)(nil)
)

func New() *Store {
	return &Store{
		writer: make(chan struct{}, 1),
		state: &state{
			events:   map[uint64]model.Event{},
			seats:    map[uint64]model.Seat{},
			bookings: map[uint64]model.Booking{},
		},
		users:  map[uint64]model.User{},
		tokens: map[string]refreshToken{},
	}
}

// Begin blocks until no other transaction is open or ctx is done.
func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.RLock()
	st := s.state.clone()
	s.mu.RUnlock()
	return &tx{s: s, st: st}, nil
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) GetEvent(_ context.Context, id uint64) (model.Event, error) {
	e, ok := s.snapshot().events[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEvents(_ context.Context, f repository.EventFilter) ([]model.Event, int, error) {
	q := strings.ToLower(f.Query)
	var matched []model.Event
	for _, e := range s.snapshot().events {
		if q != "" && !strings.Contains(strings.ToLower(e.Name), q) && !strings.Contains(strings.ToLower(e.Venue), q) {
			continue
		}
		if f.Venue != "" && e.Venue != f.Venue {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.From != nil && e.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && e.StartTime.After(*f.To) {
			continue
		}
		matched = append(matched, e)
	}

	less := func(a, b model.Event) int {
		switch f.Sort {
		case "name":
			return strings.Compare(a.Name, b.Name)
		case "utilization":
			// booked_a/cap_a vs booked_b/cap_b without floating point
			l, r := a.BookedCount*b.Capacity, b.BookedCount*a.Capacity
			if l != r {
				if l < r {
					return -1
				}
				return 1
			}
			return 0
		default:
			return a.StartTime.Compare(b.StartTime)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		c := less(matched[i], matched[j])
		if c == 0 {
			c = compareID(matched[i].ID, matched[j].ID)
		}
		if f.Desc {
			return c > 0
		}
		return c < 0
	})

	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start < 0 || start >= total {
		return []model.Event{}, total, nil
	}
	end := start + f.PageSize
	if f.PageSize <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) AllEvents(_ context.Context) ([]model.Event, error) {
	out := make([]model.Event, 0)
	for _, e := range s.snapshot().events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].StartTime.Compare(out[j].StartTime); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) EventsWithWaitlist(_ context.Context) ([]uint64, error) {
	var ids []uint64
	for _, e := range s.snapshot().events {
		if e.Status == model.EventActive && e.WaitlistedCount > 0 {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ListSeats(_ context.Context, eventID uint64) ([]model.Seat, error) {
	return seatsOf(s.snapshot(), eventID), nil
}

func (s *Store) GetBooking(_ context.Context, id uint64) (model.Booking, error) {
	st := s.snapshot()
	b, ok := st.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return withSeats(st, b), nil
}

func (s *Store) FindBookingByKey(_ context.Context, userID, eventID uint64, key string) (model.Booking, error) {
	st := s.snapshot()
	b, err := findByKey(st, userID, eventID, key)
	if err != nil {
		return b, err
	}
	return withSeats(st, b), nil
}

func (s *Store) ListBookingsByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	st := s.snapshot()
	out := []model.Booking{}
	for _, b := range st.bookings {
		if b.UserID == userID {
			out = append(out, withSeats(st, b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].CreatedAt.Compare(out[j].CreatedAt); c != 0 {
			return c > 0
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) DailyBookingCounts(_ context.Context, status string, since time.Time) (map[string]int, error) {
	out := map[string]int{}
	for _, b := range s.snapshot().bookings {
		if b.Status == status && !b.CreatedAt.Before(since) {
			out[b.CreatedAt.UTC().Format("2006-01-02")]++
		}
	}
	return out, nil
}

func compareID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// seatsOf returns an event's seats ordered A..Z, AA.., then by column.
func seatsOf(st *state, eventID uint64) []model.Seat {
	var out []model.Seat
	for _, seat := range st.seats {
		if seat.EventID == eventID {
			out = append(out, seat)
		}
	}
	sortSeats(out)
	return out
}

func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool {
		a, b := seats[i], seats[j]
		if len(a.RowLabel) != len(b.RowLabel) {
			return len(a.RowLabel) < len(b.RowLabel)
		}
		if a.RowLabel != b.RowLabel {
			return a.RowLabel < b.RowLabel
		}
		return a.ColNumber < b.ColNumber
	})
}

func withSeats(st *state, b model.Booking) model.Booking {
	b.SeatIDs = []uint64{}
	b.SeatLabels = []string{}
	var held []model.Seat
	for _, seat := range st.seats {
		if seat.ReservedBookingID != nil && *seat.ReservedBookingID == b.ID {
			held = append(held, seat)
		}
	}
	sortSeats(held)
	for _, seat := range held {
		b.SeatIDs = append(b.SeatIDs, seat.ID)
		b.SeatLabels = append(b.SeatLabels, seat.Label)
	}
	return b
}

func findByKey(st *state, userID, eventID uint64, key string) (model.Booking, error) {
	for _, b := range st.bookings {
		if b.UserID == userID && b.EventID == eventID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrNotFound
}
