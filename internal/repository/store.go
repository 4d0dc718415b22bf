package repository

import (
	"context"
	"time"

	"github.com/iliyamo/evently/internal/model"
)

// EventFilter narrows and orders an event listing.  Zero values mean "no
// filter"; Page and PageSize are expected to be normalised by the caller.
type EventFilter struct {
	Query    string // substring of name or venue, case-insensitive
	Venue    string
	Status   string
	From, To *time.Time // start_time range, inclusive
	Sort     string     // name | start_time | utilization
	Desc     bool
	Page     int
	PageSize int
}

// Tx is a unit of work.  Every mutation of events, seats and bookings happens
// inside one, and callers serialise per event by calling LockEvent first.
type Tx interface {
	Commit() error
	Rollback() error

	LockEvent(ctx context.Context, id uint64) (model.Event, error)
	InsertEvent(ctx context.Context, e *model.Event) error
	// UpdateEvent persists every mutable column including the counters.
	UpdateEvent(ctx context.Context, e model.Event) error
	DeleteEvent(ctx context.Context, id uint64) error

	FindBookingByKey(ctx context.Context, userID, eventID uint64, key string) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	LockBooking(ctx context.Context, id uint64) (model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status string) error
	// ListWaitlisted returns WAITLISTED bookings oldest first (created_at, id).
	ListWaitlisted(ctx context.Context, eventID uint64) ([]model.Booking, error)
	CountBookings(ctx context.Context, eventID uint64) (int, error)

	// LockSeats returns every seat of the event ordered by row then column.
	LockSeats(ctx context.Context, eventID uint64) ([]model.Seat, error)
	InsertSeats(ctx context.Context, seats []model.Seat) error
	// ReserveSeats marks the given unreserved seats as held by bookingID.
	// It returns ErrSeatTaken unless every seat changed.
	ReserveSeats(ctx context.Context, eventID, bookingID uint64, seatIDs []uint64) error
	// ReleaseSeats frees the seats held by bookingID and returns their ids.
	ReleaseSeats(ctx context.Context, bookingID uint64) ([]uint64, error)
	// DeleteFreeSeats removes unreserved seats; ErrSeatTaken if any is held.
	DeleteFreeSeats(ctx context.Context, eventID uint64, seatIDs []uint64) error
}

// Store is the booking data store.  Reads outside a transaction see
// committed state only.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetEvent(ctx context.Context, id uint64) (model.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, int, error)
	// AllEvents returns every event ordered by start_time.
	AllEvents(ctx context.Context) ([]model.Event, error)
	EventsWithWaitlist(ctx context.Context) ([]uint64, error)

	ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error)

	// Booking reads populate SeatIDs and SeatLabels.
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	FindBookingByKey(ctx context.Context, userID, eventID uint64, key string) (model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	// DailyBookingCounts counts bookings with the given status created at or
	// after since, keyed by UTC date (YYYY-MM-DD).
	DailyBookingCounts(ctx context.Context, status string, since time.Time) (map[string]int, error)
}

// UserStore persists accounts and refresh tokens.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id uint64) (model.User, error)
	ListUsers(ctx context.Context, role string) ([]model.User, error)
	UpdateUserRole(ctx context.Context, id uint64, role string) error

	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	// ValidateRefresh returns the owner of a live token or ErrNotFound.
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
}
