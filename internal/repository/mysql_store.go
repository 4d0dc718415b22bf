package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/evently/internal/model"
)

// MySQLStore implements Store and UserStore on top of the per-table repos.
type MySQLStore struct {
	db       *sql.DB
	events   *EventRepo
	seats    *SeatRepo
	bookings *BookingRepo
	users    *UserRepo
	tokens   *TokenRepo
}

var (
	_ Store     = (*MySQLStore)(nil)
	_ UserStore = (*MySQLStore)(nil)
	_ Tx        = (*mysqlTx)(nil)
)

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:       db,
		events:   NewEventRepo(db),
		seats:    NewSeatRepo(db),
		bookings: NewBookingRepo(db),
		users:    NewUserRepo(db),
		tokens:   NewTokenRepo(db),
	}
}

// Begin opens a READ COMMITTED transaction.  Row locks taken with FOR UPDATE
// provide the per-event serialisation; the weaker isolation level avoids gap
// lock deadlocks between bookings of different events.
func (s *MySQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapErr(err)
	}
	return &mysqlTx{tx: tx, s: s}, nil
}

func (s *MySQLStore) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *MySQLStore) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, int, error) {
	return s.events.Search(ctx, f)
}

func (s *MySQLStore) AllEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.All(ctx)
}

func (s *MySQLStore) EventsWithWaitlist(ctx context.Context) ([]uint64, error) {
	return s.events.WithWaitlist(ctx)
}

func (s *MySQLStore) ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	return s.seats.ListByEvent(ctx, eventID)
}

func (s *MySQLStore) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return b, err
	}
	return s.withSeats(ctx, b)
}

func (s *MySQLStore) FindBookingByKey(ctx context.Context, userID, eventID uint64, key string) (model.Booking, error) {
	b, err := s.bookings.FindByKey(ctx, s.db, userID, eventID, key)
	if err != nil {
		return b, err
	}
	return s.withSeats(ctx, b)
}

func (s *MySQLStore) ListBookingsByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	list, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(list))
	for i, b := range list {
		ids[i] = b.ID
	}
	held, err := s.seats.ByBookings(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		attachSeats(&list[i], held[list[i].ID])
	}
	return list, nil
}

func (s *MySQLStore) DailyBookingCounts(ctx context.Context, status string, since time.Time) (map[string]int, error) {
	return s.bookings.DailyCounts(ctx, status, since)
}

func (s *MySQLStore) withSeats(ctx context.Context, b model.Booking) (model.Booking, error) {
	held, err := s.seats.ByBookings(ctx, []uint64{b.ID})
	if err != nil {
		return b, err
	}
	attachSeats(&b, held[b.ID])
	return b, nil
}

func attachSeats(b *model.Booking, seats []model.Seat) {
	b.SeatIDs = make([]uint64, 0, len(seats))
	b.SeatLabels = make([]string, 0, len(seats))
	for _, st := range seats {
		b.SeatIDs = append(b.SeatIDs, st.ID)
		b.SeatLabels = append(b.SeatLabels, st.Label)
	}
}

func (s *MySQLStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.users.Create(ctx, u)
}

func (s *MySQLStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *MySQLStore) GetUserByID(ctx context.Context, id uint64) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *MySQLStore) ListUsers(ctx context.Context, role string) ([]model.User, error) {
	return s.users.List(ctx, role)
}

func (s *MySQLStore) UpdateUserRole(ctx context.Context, id uint64, role string) error {
	return s.users.UpdateRole(ctx, id, role)
}

func (s *MySQLStore) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return s.tokens.StoreRefresh(ctx, userID, tokenHash, exp)
}

func (s *MySQLStore) ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	return s.tokens.ValidateRefresh(ctx, tokenHash, now)
}

func (s *MySQLStore) RevokeRefresh(ctx context.Context, tokenHash string) error {
	return s.tokens.RevokeByHash(ctx, tokenHash)
}

// mysqlTx binds the repos' *Tx methods to one *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
	s  *MySQLStore
}

func (t *mysqlTx) Commit() error { return mapErr(t.tx.Commit()) }

// Rollback is safe to defer after Commit.
func (t *mysqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *mysqlTx) LockEvent(ctx context.Context, id uint64) (model.Event, error) {
	return t.s.events.LockTx(ctx, t.tx, id)
}

func (t *mysqlTx) InsertEvent(ctx context.Context, e *model.Event) error {
	return t.s.events.CreateTx(ctx, t.tx, e)
}

func (t *mysqlTx) UpdateEvent(ctx context.Context, e model.Event) error {
	return t.s.events.UpdateTx(ctx, t.tx, e)
}

func (t *mysqlTx) DeleteEvent(ctx context.Context, id uint64) error {
	return t.s.events.DeleteTx(ctx, t.tx, id)
}

func (t *mysqlTx) FindBookingByKey(ctx context.Context, userID, eventID uint64, key string) (model.Booking, error) {
	return t.s.bookings.FindByKey(ctx, t.tx, userID, eventID, key)
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.s.bookings.CreateTx(ctx, t.tx, b)
}

func (t *mysqlTx) LockBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return t.s.bookings.LockTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateBookingStatus(ctx context.Context, id uint64, status string) error {
	return t.s.bookings.UpdateStatusTx(ctx, t.tx, id, status)
}

func (t *mysqlTx) ListWaitlisted(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	return t.s.bookings.WaitlistedTx(ctx, t.tx, eventID)
}

func (t *mysqlTx) CountBookings(ctx context.Context, eventID uint64) (int, error) {
	return t.s.bookings.CountByEventTx(ctx, t.tx, eventID)
}

func (t *mysqlTx) LockSeats(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	return t.s.seats.LockByEventTx(ctx, t.tx, eventID)
}

func (t *mysqlTx) InsertSeats(ctx context.Context, seats []model.Seat) error {
	return t.s.seats.CreateBulkTx(ctx, t.tx, seats)
}

func (t *mysqlTx) ReserveSeats(ctx context.Context, eventID, bookingID uint64, seatIDs []uint64) error {
	return t.s.seats.ReserveTx(ctx, t.tx, eventID, bookingID, seatIDs)
}

func (t *mysqlTx) ReleaseSeats(ctx context.Context, bookingID uint64) ([]uint64, error) {
	return t.s.seats.ReleaseTx(ctx, t.tx, bookingID)
}

func (t *mysqlTx) DeleteFreeSeats(ctx context.Context, eventID uint64, seatIDs []uint64) error {
	return t.s.seats.DeleteFreeTx(ctx, t.tx, eventID, seatIDs)
}
