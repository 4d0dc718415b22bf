// Package scheduler runs the periodic background jobs: the waitlist sweep
// that promotes waiters stranded by a failed post-commit step, and the
// analytics summary warm-up.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/evently/internal/logging"
	"github.com/iliyamo/evently/internal/service"
)

// Sweeper promotes waitlisted bookings wherever capacity is free.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Warmer rebuilds the cached analytics summary.
type Warmer interface {
	Summary(ctx context.Context, refresh bool) (service.Summary, error)
}

// Config sets the job intervals.  A zero interval disables that job.
type Config struct {
	SweepEvery time.Duration
	WarmEvery  time.Duration
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	s      gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the jobs; call Start to run them.
func New(cfg Config, sweeper Sweeper, warmer Warmer) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	sch := &Scheduler{s: s, ctx: ctx, cancel: cancel}

	if cfg.SweepEvery > 0 && sweeper != nil {
		if err := sch.add("waitlist-sweep", cfg.SweepEvery, func() {
			n, err := sweeper.Sweep(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("waitlist sweep failed")
				return
			}
			if n > 0 {
				logging.Info().Int("promoted", n).Msg("waitlist sweep promoted bookings")
			}
		}); err != nil {
			cancel()
			return nil, err
		}
	}
	if cfg.WarmEvery > 0 && warmer != nil {
		if err := sch.add("analytics-warm", cfg.WarmEvery, func() {
			if _, err := warmer.Summary(ctx, true); err != nil {
				logging.Warn().Err(err).Msg("analytics warm-up failed")
			}
		}); err != nil {
			cancel()
			return nil, err
		}
	}
	return sch, nil
}

func (s *Scheduler) add(name string, every time.Duration, fn func()) error {
	j, err := s.s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	logging.Debug().Str("job", j.Name()).Str("id", j.ID().String()).Dur("every", every).Msg("job registered")
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.s.Jobs()) }

func (s *Scheduler) Start() { s.s.Start() }

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.s.Shutdown()
}
