package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/repository"
	"github.com/iliyamo/evently/internal/session"
)

// Booking request limits.
const (
	MaxBookingQty        = 100
	MaxIdempotencyKeyLen = 64
)

// BookRequest is the body of a booking call.
type BookRequest struct {
	Qty      int      `json:"qty" validate:"required,min=1,max=100"`
	Waitlist bool     `json:"waitlist"`
	SeatIDs  []uint64 `json:"seat_ids" validate:"omitempty,max=100,unique"`
}

// BookingEngine creates and cancels bookings.
type BookingEngine struct {
	store    repository.Store
	seats    *SeatInventory
	promoter *Promoter
	opts     Options
}

// errReplay signals that the idempotency key already produced a booking.
type errReplay struct{ id uint64 }

func (errReplay) Error() string { return "idempotent replay" }

// Book places a booking for the session's user.
//
// The event row is locked for the whole decision, so bookings for one event
// are serialised.  A booking is CONFIRMED whenever capacity (and the seat
// map, if any) allows, even when waitlisting was requested; otherwise it is
// WAITLISTED if requested, or rejected with Conflict.  A repeated key for
// the same user and event returns the original booking unchanged.
func (e *BookingEngine) Book(ctx context.Context, sess session.Session, eventID uint64, req BookRequest, key string) (model.Booking, error) {
	if !sess.Authenticated() {
		return model.Booking{}, unauthorized("authentication required")
	}
	key = strings.TrimSpace(key)
	if err := validateBookRequest(req, key); err != nil {
		return model.Booking{}, err
	}
	started := time.Now()

	if key != "" {
		b, err := e.store.FindBookingByKey(ctx, sess.UserID, eventID, key)
		if err == nil {
			e.opts.Metrics.BookingReplayed()
			return b, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Booking{}, err
		}
	}

	b, notes, err := e.book(ctx, sess, eventID, req, key)
	var replay errReplay
	switch {
	case errors.As(err, &replay):
		e.opts.Metrics.BookingReplayed()
		return e.store.GetBooking(ctx, replay.id)
	case errors.Is(err, repository.ErrDuplicate) && key != "":
		// A concurrent request with the same key committed first.
		e.opts.Metrics.BookingReplayed()
		winner, ferr := e.store.FindBookingByKey(ctx, sess.UserID, eventID, key)
		if ferr != nil {
			return model.Booking{}, storeErr(ferr, "booking")
		}
		return winner, nil
	case errors.Is(err, ErrConflict):
		e.opts.Metrics.BookingRejected(conflictReason(err), time.Since(started))
		return model.Booking{}, err
	case err != nil:
		return model.Booking{}, storeErr(err, "event")
	}

	e.opts.Metrics.BookingCreated(b.Status, time.Since(started))
	afterCommit(ctx, e.opts, notes)
	logging.Ctx(ctx).Info().Uint64("booking_id", b.ID).Uint64("event_id", eventID).
		Uint64("user_id", sess.UserID).Int("qty", b.Qty).Str("status", b.Status).Msg("booking created")
	return b, nil
}

func validateBookRequest(req BookRequest, key string) error {
	if req.Qty < 1 || req.Qty > MaxBookingQty {
		return invalid("qty must be between 1 and %d", MaxBookingQty)
	}
	if len(key) > MaxIdempotencyKeyLen {
		return invalid("idempotency key longer than %d characters", MaxIdempotencyKeyLen)
	}
	seen := make(map[uint64]bool, len(req.SeatIDs))
	for _, id := range req.SeatIDs {
		if seen[id] {
			return invalid("seat_ids contains duplicates")
		}
		seen[id] = true
	}
	return nil
}

func (e *BookingEngine) book(ctx context.Context, sess session.Session, eventID uint64, req BookRequest, key string) (model.Booking, []notify.Notification, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return model.Booking{}, nil, err
	}
	defer tx.Rollback()

	ev, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return model.Booking{}, nil, storeErr(err, "event")
	}
	if key != "" {
		prior, err := tx.FindBookingByKey(ctx, sess.UserID, eventID, key)
		if err == nil {
			return model.Booking{}, nil, errReplay{id: prior.ID}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.Booking{}, nil, err
		}
	}
	if ev.Status != model.EventActive {
		return model.Booking{}, nil, conflict("event not active")
	}

	seats, err := e.seats.ensureGrid(ctx, tx, ev)
	if err != nil {
		return model.Booking{}, nil, err
	}

	var (
		chosen []model.Seat
		reason string
	)
	switch {
	case len(req.SeatIDs) > 0 && len(seats) == 0:
		return model.Booking{}, nil, conflict("event has no seat map; book by quantity")
	case len(req.SeatIDs) > 0:
		if len(req.SeatIDs) != req.Qty {
			return model.Booking{}, nil, conflict("qty must equal number of seat_ids")
		}
		var (
			missing []uint64
			taken   []string
		)
		chosen, missing, taken = pickSeats(seats, req.SeatIDs)
		if len(missing) > 0 {
			return model.Booking{}, nil, conflict("seat(s) not found for this event: %s", joinIDs(missing))
		}
		if len(taken) > 0 {
			reason = "Seat(s) not available: " + strings.Join(taken, ", ")
		}
	case len(seats) > 0:
		free := freeSeats(seats)
		if len(free) < req.Qty {
			reason = "Not enough seats available"
		} else {
			chosen = free[:req.Qty]
		}
	}
	if reason == "" && ev.Remaining() < req.Qty {
		reason = "Capacity exceeded"
	}

	now := e.opts.Now()
	b := model.Booking{
		UserID:     sess.UserID,
		EventID:    eventID,
		Qty:        req.Qty,
		CreatedAt:  now,
		SeatIDs:    []uint64{},
		SeatLabels: []string{},
	}
	if key != "" {
		k := key
		b.IdempotencyKey = &k
	}

	var noteType string
	if reason != "" {
		if !req.Waitlist {
			return model.Booking{}, nil, conflict("%s", reason)
		}
		b.Status = model.BookingWaitlisted
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return model.Booking{}, nil, err
		}
		ev.WaitlistedCount++
		noteType = notify.BookingWaitlisted
	} else {
		b.Status = model.BookingConfirmed
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return model.Booking{}, nil, err
		}
		if len(chosen) > 0 {
			if err := e.seats.reserve(ctx, tx, &b, chosen); err != nil {
				return model.Booking{}, nil, err
			}
		}
		ev.BookedCount += req.Qty
		noteType = notify.BookingConfirmed
	}

	ev.UpdatedAt = now
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return model.Booking{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, nil, err
	}
	return b, []notify.Notification{bookingNote(noteType, b, now), eventNote(notify.EventUpdated, ev, now)}, nil
}

// Cancel cancels a booking owned by the caller (or any booking, for admins).
// Cancelling a CONFIRMED booking frees its seats and capacity and runs the
// waitlist promoter in the same transaction.  Cancelling an already
// cancelled booking is a no-op.
func (e *BookingEngine) Cancel(ctx context.Context, sess session.Session, bookingID uint64) (model.Booking, error) {
	if !sess.Authenticated() {
		return model.Booking{}, unauthorized("authentication required")
	}
	// Read unlocked first so the event lock is always taken before the
	// booking lock.
	current, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, storeErr(err, "booking")
	}
	if !sess.CanAccess(current.UserID) {
		return model.Booking{}, forbidden("not your booking")
	}
	if current.Status == model.BookingCancelled {
		return current, nil
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return model.Booking{}, storeErr(err, "booking")
	}
	defer tx.Rollback()

	ev, err := tx.LockEvent(ctx, current.EventID)
	if err != nil {
		return model.Booking{}, storeErr(err, "event")
	}
	b, err := tx.LockBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, storeErr(err, "booking")
	}

	var promoted []model.Booking
	switch b.Status {
	case model.BookingCancelled:
		return e.store.GetBooking(ctx, bookingID)
	case model.BookingConfirmed:
		if _, err := tx.ReleaseSeats(ctx, b.ID); err != nil {
			return model.Booking{}, storeErr(err, "seat")
		}
		ev.BookedCount -= b.Qty
		if ev.BookedCount < 0 {
			ev.BookedCount = 0
		}
	case model.BookingWaitlisted:
		if ev.WaitlistedCount > 0 {
			ev.WaitlistedCount--
		}
	}
	wasConfirmed := b.Status == model.BookingConfirmed
	if err := tx.UpdateBookingStatus(ctx, b.ID, model.BookingCancelled); err != nil {
		return model.Booking{}, storeErr(err, "booking")
	}
	b.Status = model.BookingCancelled
	b.SeatIDs, b.SeatLabels = []uint64{}, []string{}

	if wasConfirmed {
		if promoted, err = e.promoter.promoteTx(ctx, tx, &ev); err != nil {
			return model.Booking{}, err
		}
	}
	now := e.opts.Now()
	ev.UpdatedAt = now
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return model.Booking{}, storeErr(err, "event")
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, storeErr(err, "booking")
	}

	notes := []notify.Notification{bookingNote(notify.BookingCancelled, b, now)}
	notes = append(notes, e.promoter.notes(promoted)...)
	notes = append(notes, eventNote(notify.EventUpdated, ev, now))
	afterCommit(ctx, e.opts, notes)
	e.opts.Metrics.BookingCancelled()
	e.opts.Metrics.Promoted(len(promoted))
	logging.Ctx(ctx).Info().Uint64("booking_id", b.ID).Uint64("event_id", b.EventID).
		Int("promoted", len(promoted)).Msg("booking cancelled")
	return b, nil
}

// Get returns one booking visible to the caller.
func (e *BookingEngine) Get(ctx context.Context, sess session.Session, bookingID uint64) (model.Booking, error) {
	if !sess.Authenticated() {
		return model.Booking{}, unauthorized("authentication required")
	}
	b, err := e.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, storeErr(err, "booking")
	}
	if !sess.CanAccess(b.UserID) {
		return model.Booking{}, forbidden("not your booking")
	}
	return b, nil
}

// ListMine returns the caller's bookings, newest first.
func (e *BookingEngine) ListMine(ctx context.Context, sess session.Session) ([]model.Booking, error) {
	if !sess.Authenticated() {
		return nil, unauthorized("authentication required")
	}
	return e.store.ListBookingsByUser(ctx, sess.UserID)
}

func bookingNote(typ string, b model.Booking, at time.Time) notify.Notification {
	return notify.Notification{Type: typ, EventID: b.EventID, UserID: b.UserID, Booking: &b, At: at}
}

func eventNote(typ string, ev model.Event, at time.Time) notify.Notification {
	return notify.Notification{Type: typ, EventID: ev.ID, Event: &ev, At: at}
}

func conflictReason(err error) string {
	d := strings.ToLower(Detail(err))
	switch {
	case strings.Contains(d, "not active"):
		return "inactive"
	case strings.Contains(d, "seat"):
		return "seat"
	case strings.Contains(d, "capacity"):
		return "full"
	case strings.Contains(d, "busy"):
		return "busy"
	}
	return "other"
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ", ")
}
