package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evently/internal/service"
)

type countingSweeper struct{ n atomic.Int32 }

func (c *countingSweeper) Sweep(context.Context) (int, error) {
	c.n.Add(1)
	return 0, nil
}

type countingWarmer struct{ refreshed atomic.Int32 }

func (c *countingWarmer) Summary(_ context.Context, refresh bool) (service.Summary, error) {
	if refresh {
		c.refreshed.Add(1)
	}
	return service.Summary{}, nil
}

func TestSchedulerRunsJobs(t *testing.T) {
	sw, wm := &countingSweeper{}, &countingWarmer{}
	s, err := New(Config{SweepEvery: 20 * time.Millisecond, WarmEvery: 20 * time.Millisecond}, sw, wm)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Jobs())

	s.Start()
	defer func() { require.NoError(t, s.Shutdown()) }()

	assert.Eventually(t, func() bool { return sw.n.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return wm.refreshed.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	s, err := New(Config{SweepEvery: time.Minute}, &countingSweeper{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())
	require.NoError(t, s.Shutdown())
}
