package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"strings"

	"github.com/iliyamo/evently/internal/model"
)

// SeatRepo provides methods to work with an event's seat map.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// seatOrder sorts rows A..Z before AA.. and seats by column within a row.
const seatOrder = "ORDER BY CHAR_LENGTH(row_label), row_label, col_number"

const seatColumns = "id, event_id, label, row_label, col_number, reserved, reserved_booking_id"

// ListByEvent retrieves the committed seat map of an event.
func (r *SeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	return querySeats(ctx, r.db, "SELECT "+seatColumns+" FROM seats WHERE event_id = ? "+seatOrder, eventID)
}

// LockByEventTx retrieves the seat map with row locks held until the
// transaction ends.
func (r *SeatRepo) LockByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.Seat, error) {
	return querySeats(ctx, tx, "SELECT "+seatColumns+" FROM seats WHERE event_id = ? "+seatOrder+" FOR UPDATE", eventID)
}

// seatBatch bounds the rows per statement; MySQL allows 65,535 placeholders.
const seatBatch = 1000

// CreateBulkTx inserts seats in multi-row statements of at most seatBatch
// rows.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	for start := 0; start < len(seats); start += seatBatch {
		end := start + seatBatch
		if end > len(seats) {
			end = len(seats)
		}
		chunk := seats[start:end]

		var q strings.Builder
		q.WriteString("INSERT INTO seats (event_id, label, row_label, col_number, reserved) VALUES ")
		args := make([]interface{}, 0, len(chunk)*5)
		for i, seat := range chunk {
			if i > 0 {
				q.WriteByte(',')
			}
			q.WriteString("(?, ?, ?, ?, ?)")
			args = append(args, seat.EventID, seat.Label, seat.RowLabel, seat.ColNumber, false)
		}
		if _, err := tx.ExecContext(ctx, q.String(), args...); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// ReserveTx flips the given seats to reserved for bookingID.  The update is
// conditional on reserved = 0, so when two transactions race for a seat only
// one of them sees every row change; the other gets ErrSeatTaken and must
// roll back.
func (r *SeatRepo) ReserveTx(ctx context.Context, tx *sql.Tx, eventID, bookingID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	q := `UPDATE seats SET reserved = 1, reserved_booking_id = ?
	      WHERE event_id = ? AND reserved = 0 AND id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]any, 0, len(seatIDs)+2)
	args = append(args, bookingID, eventID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(seatIDs)) {
		return ErrSeatTaken
	}
	return nil
}

// ReleaseTx frees every seat held by bookingID and returns their ids.
func (r *SeatRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM seats WHERE reserved_booking_id = ? FOR UPDATE", bookingID)
	if err != nil {
		return nil, mapErr(err)
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE seats SET reserved = 0, reserved_booking_id = NULL WHERE reserved_booking_id = ?", bookingID)
	if err != nil {
		return nil, mapErr(err)
	}
	return ids, nil
}

// DeleteFreeTx removes the given seats provided none of them is reserved.
// Large sets are deleted in batches of seatBatch ids.
func (r *SeatRepo) DeleteFreeTx(ctx context.Context, tx *sql.Tx, eventID uint64, seatIDs []uint64) error {
	for start := 0; start < len(seatIDs); start += seatBatch {
		end := start + seatBatch
		if end > len(seatIDs) {
			end = len(seatIDs)
		}
		chunk := seatIDs[start:end]

		q := "DELETE FROM seats WHERE event_id = ? AND reserved = 0 AND id IN (" + placeholders(len(chunk)) + ")"
		args := make([]any, 0, len(chunk)+1)
		args = append(args, eventID)
		for _, id := range chunk {
			args = append(args, id)
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return mapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != int64(len(chunk)) {
			return ErrSeatTaken
		}
	}
	return nil
}

// ByBookings maps booking ids to the seats they hold.
func (r *SeatRepo) ByBookings(ctx context.Context, bookingIDs []uint64) (map[uint64][]model.Seat, error) {
	out := map[uint64][]model.Seat{}
	if len(bookingIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(bookingIDs))
	for i, id := range bookingIDs {
		args[i] = id
	}
	seats, err := querySeats(ctx, r.db, "SELECT "+seatColumns+
		" FROM seats WHERE reserved_booking_id IN ("+placeholders(len(bookingIDs))+") "+seatOrder, args...)
	if err != nil {
		return nil, err
	}
	for _, s := range seats {
		out[*s.ReservedBookingID] = append(out[*s.ReservedBookingID], s)
	}
	return out, nil
}

func querySeats(ctx context.Context, q querier, query string, args ...any) ([]model.Seat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var (
			s   model.Seat
			bid sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.EventID, &s.Label, &s.RowLabel, &s.ColNumber, &s.Reserved, &bid); err != nil {
			return nil, err
		}
		if bid.Valid {
			v := uint64(bid.Int64)
			s.ReservedBookingID = &v
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
