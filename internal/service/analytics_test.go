package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 33.33, percent(1, 3))
	assert.Equal(t, 66.67, percent(2, 3))
	assert.Equal(t, 100.0, percent(5, 5))
	assert.Equal(t, 0.0, percent(3, 0))
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	small := f.event(t, 3)
	big := f.event(t, 10)
	f.book(t, 2, small.ID, 1, false)
	f.book(t, 3, big.ID, 4, false)
	gone := f.book(t, 4, big.ID, 1, false)
	_, err := f.svc.Bookings.Cancel(ctx, member(4), gone.ID)
	require.NoError(t, err)

	s, err := f.svc.Analytics.Summary(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Totals.Events)
	assert.Equal(t, 2, s.Totals.ActiveEvents)
	assert.Equal(t, 13, s.Totals.Capacity)
	assert.Equal(t, 5, s.Totals.Booked)
	assert.Equal(t, 38.46, s.Totals.UtilizationPct)

	require.Len(t, s.Events, 2)
	assert.Equal(t, 33.33, s.Events[0].UtilizationPct)
	require.Len(t, s.TopEvents, 2)
	assert.Equal(t, big.ID, s.TopEvents[0].ID)

	require.Len(t, s.Timeseries7d.Bookings, 7)
	require.Len(t, s.Timeseries7d.Cancellations, 7)
	assert.Equal(t, "2026-02-23", s.Timeseries7d.Bookings[0].Date)
	last := s.Timeseries7d.Bookings[6]
	assert.Equal(t, "2026-03-01", last.Date)
	assert.Equal(t, 2, last.Count)
	assert.Equal(t, 1, s.Timeseries7d.Cancellations[6].Count)
	assert.Zero(t, s.Timeseries7d.Bookings[0].Count)
}

func TestSummaryCacheInvalidatedByBookings(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 10)

	first, err := f.svc.Analytics.Summary(ctx, false)
	require.NoError(t, err)
	_, cached := f.cache.Get(ctx, SummaryCacheKey)
	require.True(t, cached)

	again, err := f.svc.Analytics.Summary(ctx, false)
	require.NoError(t, err)
	assert.True(t, first.GeneratedAt.Equal(again.GeneratedAt))

	fresh, err := f.svc.Analytics.Summary(ctx, true)
	require.NoError(t, err)
	assert.True(t, fresh.GeneratedAt.After(first.GeneratedAt))

	f.book(t, 2, ev.ID, 3, false)
	_, cached = f.cache.Get(ctx, SummaryCacheKey)
	assert.False(t, cached)

	after, err := f.svc.Analytics.Summary(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Totals.Booked)
}
