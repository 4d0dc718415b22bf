package service

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/repository"
)

// SummaryCacheKey is where the analytics summary is cached.
const SummaryCacheKey = "analytics:summary"

const (
	topEventsLimit = 5
	seriesDays     = 7
)

// Totals aggregates every event.
type Totals struct {
	Events         int     `json:"events"`
	ActiveEvents   int     `json:"active_events"`
	Capacity       int     `json:"capacity"`
	Booked         int     `json:"booked"`
	UtilizationPct float64 `json:"utilization_pct"`
}

// EventStat is one event's row in the summary.
type EventStat struct {
	ID             uint64    `json:"id"`
	Name           string    `json:"name"`
	Venue          string    `json:"venue"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	Capacity       int       `json:"capacity"`
	BookedCount    int       `json:"booked_count"`
	Waitlisted     int       `json:"waitlisted_count"`
	UtilizationPct float64   `json:"utilization_pct"`
}

// DayCount is one point of a daily series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Timeseries holds the daily booking and cancellation counts.
type Timeseries struct {
	Bookings      []DayCount `json:"bookings"`
	Cancellations []DayCount `json:"cancellations"`
}

// Summary is the admin analytics report.
type Summary struct {
	GeneratedAt  time.Time   `json:"generated_at"`
	Totals       Totals      `json:"totals"`
	Events       []EventStat `json:"events"`
	TopEvents    []EventStat `json:"top_events"`
	Timeseries7d Timeseries  `json:"timeseries_7d"`
}

// Analytics builds the admin summary from committed state.
type Analytics struct {
	store repository.Store
	opts  Options
}

// Summary returns the cached report unless refresh is set or the cache has
// expired, in which case it is rebuilt and cached again.
func (a *Analytics) Summary(ctx context.Context, refresh bool) (Summary, error) {
	if !refresh {
		if raw, ok := a.opts.Cache.Get(ctx, SummaryCacheKey); ok {
			var s Summary
			if err := json.Unmarshal(raw, &s); err == nil {
				return s, nil
			}
			logging.Ctx(ctx).Warn().Msg("discarding unreadable analytics cache entry")
		}
	}

	s, err := a.build(ctx)
	if err != nil {
		return Summary{}, err
	}
	if raw, err := json.Marshal(s); err == nil {
		a.opts.Cache.Set(ctx, SummaryCacheKey, raw, a.opts.SummaryTTL)
	}
	return s, nil
}

func (a *Analytics) build(ctx context.Context) (Summary, error) {
	events, err := a.store.AllEvents(ctx)
	if err != nil {
		return Summary{}, err
	}
	now := a.opts.Now()
	s := Summary{GeneratedAt: now, Events: make([]EventStat, 0, len(events))}
	for _, ev := range events {
		s.Totals.Events++
		if ev.Status == model.EventActive {
			s.Totals.ActiveEvents++
		}
		s.Totals.Capacity += ev.Capacity
		s.Totals.Booked += ev.BookedCount
		s.Events = append(s.Events, EventStat{
			ID:             ev.ID,
			Name:           ev.Name,
			Venue:          ev.Venue,
			StartTime:      ev.StartTime,
			EndTime:        ev.EndTime,
			Status:         ev.Status,
			Capacity:       ev.Capacity,
			BookedCount:    ev.BookedCount,
			Waitlisted:     ev.WaitlistedCount,
			UtilizationPct: percent(ev.BookedCount, ev.Capacity),
		})
	}
	s.Totals.UtilizationPct = percent(s.Totals.Booked, s.Totals.Capacity)

	top := append([]EventStat(nil), s.Events...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].BookedCount > top[j].BookedCount })
	if len(top) > topEventsLimit {
		top = top[:topEventsLimit]
	}
	s.TopEvents = top

	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(seriesDays - 1))
	if s.Timeseries7d.Bookings, err = a.series(ctx, model.BookingConfirmed, since); err != nil {
		return Summary{}, err
	}
	if s.Timeseries7d.Cancellations, err = a.series(ctx, model.BookingCancelled, since); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// series returns seriesDays zero-filled points starting at since.
func (a *Analytics) series(ctx context.Context, status string, since time.Time) ([]DayCount, error) {
	counts, err := a.store.DailyBookingCounts(ctx, status, since)
	if err != nil {
		return nil, err
	}
	out := make([]DayCount, seriesDays)
	for i := range out {
		day := since.AddDate(0, 0, i).Format(time.DateOnly)
		out[i] = DayCount{Date: day, Count: counts[day]}
	}
	return out, nil
}

// percent returns part/whole*100 rounded to two decimals.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole))).Round(2)
	f, _ := pct.Float64()
	return f
}
