package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/evently/internal/model"
)

// BookingRepo persists bookings.  Seat assignments live on the seats table
// (reserved_booking_id) and are attached by the store on read.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = "id, user_id, event_id, qty, status, idempotency_key, created_at"

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b   model.Booking
		key sql.NullString
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.EventID, &b.Qty, &b.Status, &key, &b.CreatedAt); err != nil {
		return model.Booking{}, err
	}
	if key.Valid {
		k := key.String
		b.IdempotencyKey = &k
	}
	return b, nil
}

// GetByID returns a committed booking without seats.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	return b, mapErr(err)
}

// LockTx reads a booking with an exclusive row lock.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
	return b, mapErr(err)
}

// FindByKey looks up the booking produced by an idempotency key.  q is the
// pool for plain reads or a transaction for reads under the event lock.
func (r *BookingRepo) FindByKey(ctx context.Context, q querier, userID, eventID uint64, key string) (model.Booking, error) {
	const sel = "SELECT " + bookingColumns + ` FROM bookings
		WHERE user_id = ? AND event_id = ? AND idempotency_key = ? LIMIT 1`
	b, err := scanBooking(q.QueryRowContext(ctx, sel, userID, eventID, key))
	return b, mapErr(err)
}

// CreateTx inserts a booking and populates its ID.  A clash on the
// (user_id, event_id, idempotency_key) unique index yields ErrDuplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, event_id, qty, status, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.EventID, b.Qty, b.Status, b.IdempotencyKey, b.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// UpdateStatusTx sets the status of a booking.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	res, err := tx.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

// WaitlistedTx returns the event's waiting bookings in FIFO order, locked.
func (r *BookingRepo) WaitlistedTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.Booking, error) {
	const q = "SELECT " + bookingColumns + ` FROM bookings
		WHERE event_id = ? AND status = 'WAITLISTED'
		ORDER BY created_at ASC, id ASC FOR UPDATE`
	return queryBookings(ctx, tx, q, eventID)
}

// CountByEventTx counts bookings of any status for an event.
func (r *BookingRepo) CountByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE event_id = ?", eventID).Scan(&n)
	return n, mapErr(err)
}

// ListByUser returns a user's bookings newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = "SELECT " + bookingColumns + ` FROM bookings WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`
	return queryBookings(ctx, r.db, q, userID)
}

// DailyCounts groups bookings of one status by UTC creation date.
func (r *BookingRepo) DailyCounts(ctx context.Context, status string, since time.Time) (map[string]int, error) {
	const q = `SELECT DATE_FORMAT(created_at, '%Y-%m-%d') AS day, COUNT(*)
		FROM bookings WHERE status = ? AND created_at >= ?
		GROUP BY day`
	rows, err := r.db.QueryContext(ctx, q, status, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			day string
			n   int
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		out[day] = n
	}
	return out, rows.Err()
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
