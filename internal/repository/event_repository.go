package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/evently/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventRepo provides persistence for the events table.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, venue, start_time, end_time, capacity, booked_count,
	waitlisted_count, status, created_by, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanEvent(s rowScanner) (model.Event, error) {
	var (
		e         model.Event
		createdBy sql.NullInt64
	)
	err := s.Scan(&e.ID, &e.Name, &e.Venue, &e.StartTime, &e.EndTime, &e.Capacity,
		&e.BookedCount, &e.WaitlistedCount, &e.Status, &createdBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	if createdBy.Valid {
		id := uint64(createdBy.Int64)
		e.CreatedBy = &id
	}
	return e, nil
}

// GetByID returns a committed event.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id))
	return e, mapErr(err)
}

// LockTx reads an event row with an exclusive lock held until the
// transaction ends.  All booking mutations for the event queue behind it.
func (r *EventRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	e, err := scanEvent(tx.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? FOR UPDATE", id))
	return e, mapErr(err)
}

// CreateTx inserts an event and populates its ID.
func (r *EventRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Event) error {
	const q = `INSERT INTO events (name, venue, start_time, end_time, capacity, booked_count,
		waitlisted_count, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, e.Name, e.Venue, e.StartTime, e.EndTime, e.Capacity,
		e.BookedCount, e.WaitlistedCount, e.Status, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// UpdateTx writes all mutable columns of e.  The row is expected to be
// locked by LockTx, so an unchanged row is not an error.
func (r *EventRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e model.Event) error {
	const q = `UPDATE events SET name = ?, venue = ?, start_time = ?, end_time = ?, capacity = ?,
		booked_count = ?, waitlisted_count = ?, status = ?, updated_at = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, e.Name, e.Venue, e.StartTime, e.EndTime, e.Capacity,
		e.BookedCount, e.WaitlistedCount, e.Status, e.UpdatedAt, e.ID)
	return mapErr(err)
}

// DeleteTx removes an event; seats and bookings cascade.
func (r *EventRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

var eventSortColumns = map[string]string{
	"name":        "name",
	"start_time":  "start_time",
	"utilization": "(booked_count / capacity)",
}

// Search lists events matching f and the total number of matches.
func (r *EventRepo) Search(ctx context.Context, f EventFilter) ([]model.Event, int, error) {
	where := []string{}
	args := []any{}

	if f.Query != "" {
		like := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(venue) LIKE ?)")
		args = append(args, like, like)
	}
	if f.Venue != "" {
		where = append(where, "venue = ?")
		args = append(args, f.Venue)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		where = append(where, "start_time >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "start_time <= ?")
		args = append(args, *f.To)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := eventSortColumns[f.Sort]
	if !ok {
		col = "start_time"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	dataSQL := "SELECT " + eventColumns + " FROM events WHERE " + cond +
		" ORDER BY " + col + " " + dir + ", id " + dir + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)

	out, err := queryEvents(ctx, r.db, dataSQL, argsData...)
	return out, total, err
}

// All returns every event ordered by start_time.
func (r *EventRepo) All(ctx context.Context) ([]model.Event, error) {
	return queryEvents(ctx, r.db, "SELECT "+eventColumns+" FROM events ORDER BY start_time ASC, id ASC")
}

// WithWaitlist returns ids of active events that have waiting bookings.
func (r *EventRepo) WithWaitlist(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM events WHERE status = 'active' AND waitlisted_count > 0 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryEvents(ctx context.Context, q querier, query string, args ...any) ([]model.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
