package service

import (
	"context"
	"time"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/metrics"
	"github.com/iliyamo/evently/internal/notify"
	"github.com/iliyamo/evently/internal/repository"
)

// Cache is a byte cache with expiry.  Misses and backend failures both
// report ok=false.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// Options are the collaborators shared by the booking services.
type Options struct {
	SeatsPerRow int
	Notifier    notify.Publisher
	Metrics     metrics.Recorder
	Cache       Cache
	SummaryTTL  time.Duration
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SeatsPerRow < 1 {
		o.SeatsPerRow = 10
	}
	if o.Notifier == nil {
		o.Notifier = notify.Discard{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Nop{}
	}
	if o.Cache == nil {
		o.Cache = nopCache{}
	}
	if o.SummaryTTL <= 0 {
		o.SummaryTTL = time.Minute
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (nopCache) Set(context.Context, string, []byte, time.Duration) {}
func (nopCache) Delete(context.Context, ...string)                  {}

// Services bundles every domain service over one store.
type Services struct {
	Catalog   *Catalog
	Seats     *SeatInventory
	Bookings  *BookingEngine
	Waitlist  *Promoter
	Analytics *Analytics
}

// New wires the booking services together.
func New(store repository.Store, opts Options) *Services {
	opts = opts.withDefaults()
	seats := &SeatInventory{store: store, opts: opts}
	promoter := &Promoter{store: store, seats: seats, opts: opts}
	seats.promoter = promoter
	return &Services{
		Catalog:   &Catalog{store: store, seats: seats, promoter: promoter, opts: opts},
		Seats:     seats,
		Bookings:  &BookingEngine{store: store, seats: seats, promoter: promoter, opts: opts},
		Waitlist:  promoter,
		Analytics: &Analytics{store: store, opts: opts},
	}
}

// afterCommit publishes notifications and drops the analytics summary.
// Called only once a transaction has committed.
func afterCommit(ctx context.Context, opts Options, notes []notify.Notification) {
	opts.Cache.Delete(ctx, SummaryCacheKey)
	for _, n := range notes {
		opts.Notifier.Publish(n)
	}
	if len(notes) > 0 {
		logging.Ctx(ctx).Debug().Int("notifications", len(notes)).Str("first", notes[0].Type).Msg("published")
	}
}
