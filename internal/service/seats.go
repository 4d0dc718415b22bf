package service

import (
	"context"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/repository"
	"github.com/iliyamo/evently/internal/session"
	"github.com/iliyamo/evently/internal/utils"
)

// Grid limits for admin generated seat maps.
const (
	MaxGridRows = 26
	MaxGridCols = 200
)

// SeatInventory owns the per-event seat maps.
type SeatInventory struct {
	store    repository.Store
	promoter *Promoter
	opts     Options
}

// List returns an event's seat map.  NotFound when the event is absent or
// has no seat map yet.
func (s *SeatInventory) List(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, storeErr(err, "event")
	}
	seats, err := s.store.ListSeats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, notFound("seat map not created yet")
	}
	return seats, nil
}

// GridResult reports a generated seat map.
type GridResult struct {
	Created  int         `json:"created"`
	Capacity int         `json:"capacity"`
	Event    model.Event `json:"event"`
}

// GenerateGrid creates rows x cols seats (rows A.., columns 1..cols) and
// sets the event capacity to match.  Refused when seats already exist or
// when the grid would hold fewer seats than are already booked.
func (s *SeatInventory) GenerateGrid(ctx context.Context, sess session.Session, eventID uint64, rows, cols int) (GridResult, error) {
	if !sess.IsAdmin() {
		return GridResult{}, forbidden("admin only")
	}
	if rows < 1 || rows > MaxGridRows || cols < 1 || cols > MaxGridCols {
		return GridResult{}, invalid("rows must be 1..%d and cols 1..%d", MaxGridRows, MaxGridCols)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return GridResult{}, storeErr(err, "event")
	}
	defer tx.Rollback()

	ev, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return GridResult{}, storeErr(err, "event")
	}
	existing, err := tx.LockSeats(ctx, eventID)
	if err != nil {
		return GridResult{}, err
	}
	if len(existing) > 0 {
		return GridResult{}, conflict("seats already exist for this event")
	}
	if rows*cols < ev.BookedCount {
		return GridResult{}, conflict("grid of %d seats is smaller than booked count %d", rows*cols, ev.BookedCount)
	}

	grid := make([]model.Seat, 0, rows*cols)
	for r := 0; r < rows; r++ {
		row := utils.RowLabel(r)
		for c := 1; c <= cols; c++ {
			grid = append(grid, newSeat(eventID, row, c))
		}
	}
	if err := tx.InsertSeats(ctx, grid); err != nil {
		return GridResult{}, storeErr(err, "seat")
	}

	ev.Capacity = rows * cols
	ev.UpdatedAt = s.opts.Now()
	promoted, err := s.promoter.promoteTx(ctx, tx, &ev)
	if err != nil {
		return GridResult{}, err
	}
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return GridResult{}, storeErr(err, "event")
	}
	if err := tx.Commit(); err != nil {
		return GridResult{}, storeErr(err, "event")
	}

	notes := append([]notify.Notification{eventNote(notify.EventUpdated, ev, s.opts.Now())}, s.promoter.notes(promoted)...)
	afterCommit(ctx, s.opts, notes)
	s.opts.Metrics.Promoted(len(promoted))
	return GridResult{Created: len(grid), Capacity: ev.Capacity, Event: ev}, nil
}

// ensureGrid returns the locked seat map, generating one sized to capacity
// when the event has neither seats nor bookings.  An empty result means the
// event books by capacity only.
func (s *SeatInventory) ensureGrid(ctx context.Context, tx repository.Tx, ev model.Event) ([]model.Seat, error) {
	seats, err := tx.LockSeats(ctx, ev.ID)
	if err != nil || len(seats) > 0 {
		return seats, err
	}
	n, err := tx.CountBookings(ctx, ev.ID)
	if err != nil || n > 0 {
		return nil, err
	}
	if err := tx.InsertSeats(ctx, s.layout(ev.ID, nil, ev.Capacity, s.opts.SeatsPerRow)); err != nil {
		return nil, storeErr(err, "seat")
	}
	return tx.LockSeats(ctx, ev.ID)
}

// syncToCapacity grows or shrinks an existing seat map to ev.Capacity.
// Growth continues the grid in row-major order; shrinking removes free
// seats from the back and fails when too few are free.
func (s *SeatInventory) syncToCapacity(ctx context.Context, tx repository.Tx, ev model.Event) error {
	seats, err := tx.LockSeats(ctx, ev.ID)
	if err != nil || len(seats) == 0 || len(seats) == ev.Capacity {
		return err
	}

	if len(seats) < ev.Capacity {
		width := 0
		for _, st := range seats {
			if st.ColNumber > width {
				width = st.ColNumber
			}
		}
		return storeErr(tx.InsertSeats(ctx, s.layout(ev.ID, seats, ev.Capacity-len(seats), width)), "seat")
	}

	extra := len(seats) - ev.Capacity
	var tail []uint64
	for i := len(seats) - 1; i >= 0 && len(tail) < extra; i-- {
		if !seats[i].Reserved {
			tail = append(tail, seats[i].ID)
		}
	}
	if len(tail) < extra {
		return conflict("not enough free seats to shrink to capacity %d; cancel some bookings first", ev.Capacity)
	}
	return storeErr(tx.DeleteFreeSeats(ctx, ev.ID, tail), "seat")
}

// layout returns n new seats filling positions row-major on a grid of the
// given width, skipping positions already taken by existing.
func (s *SeatInventory) layout(eventID uint64, existing []model.Seat, n, width int) []model.Seat {
	if width < 1 {
		width = s.opts.SeatsPerRow
	}
	taken := make(map[[2]int]bool, len(existing))
	for _, st := range existing {
		if r, ok := utils.RowIndex(st.RowLabel); ok {
			taken[[2]int{r, st.ColNumber}] = true
		}
	}
	out := make([]model.Seat, 0, n)
	for k := 0; len(out) < n; k++ {
		r, c := k/width, k%width+1
		if taken[[2]int{r, c}] {
			continue
		}
		out = append(out, newSeat(eventID, utils.RowLabel(r), c))
	}
	return out
}

func newSeat(eventID uint64, row string, col int) model.Seat {
	return model.Seat{EventID: eventID, Label: utils.SeatLabel(row, col), RowLabel: row, ColNumber: col}
}

// freeSeats filters unreserved seats, keeping the best-first order.
func freeSeats(seats []model.Seat) []model.Seat {
	out := make([]model.Seat, 0, len(seats))
	for _, st := range seats {
		if !st.Reserved {
			out = append(out, st)
		}
	}
	return out
}

// pickSeats resolves requested ids against the event's seat map.
func pickSeats(seats []model.Seat, ids []uint64) (chosen []model.Seat, missing []uint64, taken []string) {
	byID := make(map[uint64]model.Seat, len(seats))
	for _, st := range seats {
		byID[st.ID] = st
	}
	for _, id := range ids {
		st, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case st.Reserved:
			taken = append(taken, st.Label)
		default:
			chosen = append(chosen, st)
		}
	}
	return chosen, missing, taken
}

// reserve marks seats as held by booking and records them on it.
func (s *SeatInventory) reserve(ctx context.Context, tx repository.Tx, b *model.Booking, seats []model.Seat) error {
	ids := make([]uint64, len(seats))
	labels := make([]string, len(seats))
	for i, st := range seats {
		ids[i], labels[i] = st.ID, st.Label
	}
	if err := tx.ReserveSeats(ctx, b.EventID, b.ID, ids); err != nil {
		return storeErr(err, "seat")
	}
	b.SeatIDs, b.SeatLabels = ids, labels
	return nil
}
