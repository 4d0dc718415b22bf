package service

import (
	"context"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/repository"
)

// Promoter moves WAITLISTED bookings to CONFIRMED when capacity frees up.
//
// Waiters are scanned oldest first (created_at, then id).  Each one whose
// qty fits the remaining capacity, and the free seats when the event has a
// seat map, is confirmed; a waiter that does not fit is skipped so a later,
// smaller request can use the space.  Inactive events never promote.
type Promoter struct {
	store repository.Store
	seats *SeatInventory
	opts  Options
}

// promoteTx runs inside the caller's transaction with ev already locked.
// It mutates ev's counters; the caller persists ev.
func (p *Promoter) promoteTx(ctx context.Context, tx repository.Tx, ev *model.Event) ([]model.Booking, error) {
	if ev.Status != model.EventActive || ev.Remaining() <= 0 {
		return nil, nil
	}
	waiters, err := tx.ListWaitlisted(ctx, ev.ID)
	if err != nil || len(waiters) == 0 {
		return nil, err
	}
	seats, err := tx.LockSeats(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	hasMap := len(seats) > 0
	free := freeSeats(seats)

	var promoted []model.Booking
	for _, w := range waiters {
		if ev.Remaining() <= 0 {
			break
		}
		if w.Qty > ev.Remaining() || (hasMap && w.Qty > len(free)) {
			continue
		}
		if err := tx.UpdateBookingStatus(ctx, w.ID, model.BookingConfirmed); err != nil {
			return nil, storeErr(err, "booking")
		}
		w.Status = model.BookingConfirmed
		w.SeatIDs, w.SeatLabels = []uint64{}, []string{}
		if hasMap {
			if err := p.seats.reserve(ctx, tx, &w, free[:w.Qty]); err != nil {
				return nil, err
			}
			free = free[w.Qty:]
		}
		ev.BookedCount += w.Qty
		if ev.WaitlistedCount > 0 {
			ev.WaitlistedCount--
		}
		promoted = append(promoted, w)
	}
	return promoted, nil
}

// Promote runs a promotion pass for one event in its own transaction.
func (p *Promoter) Promote(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, storeErr(err, "event")
	}
	defer tx.Rollback()

	ev, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return nil, storeErr(err, "event")
	}
	promoted, err := p.promoteTx(ctx, tx, &ev)
	if err != nil || len(promoted) == 0 {
		return nil, err
	}
	ev.UpdatedAt = p.opts.Now()
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return nil, storeErr(err, "event")
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err, "event")
	}
	afterCommit(ctx, p.opts, append(p.notes(promoted), eventNote(notify.EventUpdated, ev, p.opts.Now())))
	p.opts.Metrics.Promoted(len(promoted))
	return promoted, nil
}

// Sweep reconciles every active event that still has waiters.  It returns
// the number of bookings promoted; per-event failures are logged and do not
// stop the sweep.
func (p *Promoter) Sweep(ctx context.Context) (int, error) {
	ids, err := p.store.EventsWithWaitlist(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		promoted, err := p.Promote(ctx, id)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Uint64("event_id", id).Msg("waitlist sweep failed for event")
			continue
		}
		total += len(promoted)
	}
	return total, nil
}

func (p *Promoter) notes(promoted []model.Booking) []notify.Notification {
	out := make([]notify.Notification, 0, len(promoted))
	for i := range promoted {
		out = append(out, bookingNote(notify.BookingPromoted, promoted[i], p.opts.Now()))
	}
	return out
}
