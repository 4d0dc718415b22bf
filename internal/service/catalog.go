package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/repository"
	"github.com/iliyamo/evently/internal/session"
)

// Listing limits.  MaxPage keeps (page-1)*page_size far from overflow.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)

// MaxEventCapacity bounds an event's seats, and so the lazily generated seat
// map.
const MaxEventCapacity = 100_000

// EventQuery holds the raw listing parameters taken from the query string.
type EventQuery struct {
	Q        string
	Venue    string
	Status   string
	DateFrom string
	DateTo   string
	Sort     string
	Order    string
	Page     int
	PageSize int
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// EventPage is a page of events.
type EventPage struct {
	Items []model.Event `json:"items"`
	Meta  PageMeta      `json:"meta"`
}

// EventInput is the body of an event creation.
type EventInput struct {
	Name      string    `json:"name" validate:"required,min=1,max=200"`
	Venue     string    `json:"venue" validate:"required,min=1,max=200"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
	Capacity  int       `json:"capacity" validate:"required,min=1,max=100000"`
}

// EventPatch updates the non-nil fields of an event.
type EventPatch struct {
	Name      *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Venue     *string    `json:"venue" validate:"omitempty,min=1,max=200"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Capacity  *int       `json:"capacity" validate:"omitempty,min=1,max=100000"`
	Status    *string    `json:"status"`
}

// Catalog manages events.
type Catalog struct {
	store    repository.Store
	seats    *SeatInventory
	promoter *Promoter
	opts     Options
}

var sortKeys = map[string]bool{"name": true, "start_time": true, "utilization": true}

// List returns one page of events matching q.
func (c *Catalog) List(ctx context.Context, q EventQuery) (EventPage, error) {
	f, err := q.filter()
	if err != nil {
		return EventPage{}, err
	}
	items, total, err := c.store.ListEvents(ctx, f)
	if err != nil {
		return EventPage{}, err
	}
	if items == nil {
		items = []model.Event{}
	}
	return EventPage{Items: items, Meta: PageMeta{Page: f.Page, PageSize: f.PageSize, Total: total}}, nil
}

func (q EventQuery) filter() (repository.EventFilter, error) {
	f := repository.EventFilter{
		Query:    strings.TrimSpace(q.Q),
		Venue:    strings.TrimSpace(q.Venue),
		Status:   strings.ToLower(strings.TrimSpace(q.Status)),
		Sort:     strings.ToLower(strings.TrimSpace(q.Sort)),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if f.Status != "" && f.Status != model.EventActive && f.Status != model.EventInactive {
		return f, invalid("status must be active or inactive")
	}
	if f.Sort == "" {
		f.Sort = "start_time"
	}
	if !sortKeys[f.Sort] {
		return f, invalid("sort must be one of name, start_time, utilization")
	}
	switch strings.ToLower(strings.TrimSpace(q.Order)) {
	case "", "asc":
	case "desc":
		f.Desc = true
	default:
		return f, invalid("order must be asc or desc")
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 || f.Page > MaxPage {
		return f, invalid("page must be between 1 and %d", MaxPage)
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return f, invalid("page_size must be between 1 and %d", MaxPageSize)
	}
	var err error
	if f.From, err = parseDate("date_from", q.DateFrom); err != nil {
		return f, err
	}
	if f.To, err = parseDate("date_to", q.DateTo); err != nil {
		return f, err
	}
	return f, nil
}

func parseDate(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, invalid("%s must be an RFC3339 timestamp", name)
	}
	t = t.UTC()
	return &t, nil
}

// Get returns one event.
func (c *Catalog) Get(ctx context.Context, id uint64) (model.Event, error) {
	ev, err := c.store.GetEvent(ctx, id)
	return ev, storeErr(err, "event")
}

// Create adds an active event with no bookings.
func (c *Catalog) Create(ctx context.Context, sess session.Session, in EventInput) (model.Event, error) {
	if !sess.IsAdmin() {
		return model.Event{}, forbidden("admin only")
	}
	in.Name, in.Venue = strings.TrimSpace(in.Name), strings.TrimSpace(in.Venue)
	if err := checkEventFields(in.Name, in.Venue, in.StartTime, in.EndTime, in.Capacity); err != nil {
		return model.Event{}, err
	}

	now := c.opts.Now()
	creator := sess.UserID
	ev := model.Event{
		Name:      in.Name,
		Venue:     in.Venue,
		StartTime: in.StartTime.UTC(),
		EndTime:   in.EndTime.UTC(),
		Capacity:  in.Capacity,
		Status:    model.EventActive,
		CreatedBy: &creator,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return model.Event{}, err
	}
	defer tx.Rollback()
	if err := tx.InsertEvent(ctx, &ev); err != nil {
		return model.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Event{}, err
	}

	afterCommit(ctx, c.opts, []notify.Notification{eventNote(notify.EventUpdated, ev, now)})
	logging.Ctx(ctx).Info().Uint64("event_id", ev.ID).Str("name", ev.Name).Msg("event created")
	return ev, nil
}

func checkEventFields(name, venue string, start, end time.Time, capacity int) error {
	switch {
	case name == "" || len(name) > 200:
		return invalid("name must be 1..200 characters")
	case venue == "" || len(venue) > 200:
		return invalid("venue must be 1..200 characters")
	case start.IsZero() || end.IsZero():
		return invalid("start_time and end_time are required")
	case !end.After(start):
		return invalid("end_time must be after start_time")
	case capacity < 1 || capacity > MaxEventCapacity:
		return invalid("capacity must be 1..%d", MaxEventCapacity)
	}
	return nil
}

// Update applies p to an event.  Lowering capacity below the booked count
// is refused; raising it, or reactivating the event, runs the promoter.
func (c *Catalog) Update(ctx context.Context, sess session.Session, id uint64, p EventPatch) (model.Event, error) {
	if !sess.IsAdmin() {
		return model.Event{}, forbidden("admin only")
	}
	if p.Status != nil {
		s := strings.ToLower(strings.TrimSpace(*p.Status))
		if s != model.EventActive && s != model.EventInactive {
			return model.Event{}, invalid("status must be active or inactive")
		}
		p.Status = &s
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return model.Event{}, storeErr(err, "event")
	}
	defer tx.Rollback()

	ev, err := tx.LockEvent(ctx, id)
	if err != nil {
		return model.Event{}, storeErr(err, "event")
	}
	before := ev
	if p.Name != nil {
		ev.Name = strings.TrimSpace(*p.Name)
	}
	if p.Venue != nil {
		ev.Venue = strings.TrimSpace(*p.Venue)
	}
	if p.StartTime != nil {
		ev.StartTime = p.StartTime.UTC()
	}
	if p.EndTime != nil {
		ev.EndTime = p.EndTime.UTC()
	}
	if p.Capacity != nil {
		ev.Capacity = *p.Capacity
	}
	if p.Status != nil {
		ev.Status = *p.Status
	}
	if err := checkEventFields(ev.Name, ev.Venue, ev.StartTime, ev.EndTime, ev.Capacity); err != nil {
		return model.Event{}, err
	}
	if ev.Capacity < ev.BookedCount {
		return model.Event{}, conflict("capacity %d is below booked count %d", ev.Capacity, ev.BookedCount)
	}
	if ev.Capacity != before.Capacity {
		if err := c.seats.syncToCapacity(ctx, tx, ev); err != nil {
			return model.Event{}, err
		}
	}

	var promoted []model.Booking
	reactivated := before.Status != model.EventActive && ev.Status == model.EventActive
	if ev.Capacity > before.Capacity || reactivated {
		if promoted, err = c.promoter.promoteTx(ctx, tx, &ev); err != nil {
			return model.Event{}, err
		}
	}

	now := c.opts.Now()
	ev.UpdatedAt = now
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return model.Event{}, storeErr(err, "event")
	}
	if err := tx.Commit(); err != nil {
		return model.Event{}, storeErr(err, "event")
	}

	notes := append([]notify.Notification{eventNote(notify.EventUpdated, ev, now)}, c.promoter.notes(promoted)...)
	afterCommit(ctx, c.opts, notes)
	c.opts.Metrics.Promoted(len(promoted))
	logging.Ctx(ctx).Info().Uint64("event_id", ev.ID).Int("capacity", ev.Capacity).
		Str("status", ev.Status).Int("promoted", len(promoted)).Msg("event updated")
	return ev, nil
}

// Deactivate marks an event inactive.  Existing bookings are kept.
func (c *Catalog) Deactivate(ctx context.Context, sess session.Session, id uint64) (model.Event, error) {
	inactive := model.EventInactive
	return c.Update(ctx, sess, id, EventPatch{Status: &inactive})
}

// Delete removes an event that has no live bookings.
func (c *Catalog) Delete(ctx context.Context, sess session.Session, id uint64) error {
	if !sess.IsAdmin() {
		return forbidden("admin only")
	}
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return storeErr(err, "event")
	}
	defer tx.Rollback()

	ev, err := tx.LockEvent(ctx, id)
	if err != nil {
		return storeErr(err, "event")
	}
	if ev.BookedCount > 0 || ev.WaitlistedCount > 0 {
		return conflict("event has active bookings or waitlist; deactivate it instead")
	}
	if err := tx.DeleteEvent(ctx, id); err != nil {
		return storeErr(err, "event")
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, "event")
	}
	afterCommit(ctx, c.opts, []notify.Notification{eventNote(notify.EventDeleted, ev, c.opts.Now())})
	logging.Ctx(ctx).Info().Uint64("event_id", id).Msg("event deleted")
	return nil
}
