// Package scheduler drives the bank's time-based hooks: the daily free-pull
// reset, periodic balance regeneration and periodic state saves.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Engine is the part of the bank the scheduler drives.
type Engine interface {
	DailyReset()
	PeriodicRegen()
}

// SaveFunc persists the current state.
type SaveFunc func(ctx context.Context) error

type Config struct {
	DailyAt    TimeOfDay
	RegenEvery time.Duration
	SaveEvery  time.Duration
}

type Scheduler struct {
	cfg  Config
	eng  Engine
	save SaveFunc
	now  func() time.Time
}

type Option func(*Scheduler)

// WithClock replaces time.Now for computing the next daily reset.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a scheduler. A zero RegenEvery or SaveEvery disables that job;
// a nil save disables saving.
func New(cfg Config, eng Engine, save SaveFunc, opts ...Option) *Scheduler {
	s := &Scheduler{cfg: cfg, eng: eng, save: save, now: time.Now}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run blocks until ctx is done. Jobs run on this goroutine, one at a time;
// a slow job delays the next tick rather than overlapping it.
func (s *Scheduler) Run(ctx context.Context) error {
	regenC, stopRegen := tick(s.cfg.RegenEvery)
	defer stopRegen()

	var saveC <-chan time.Time
	if s.save != nil {
		var stopSave func()

		saveC, stopSave = tick(s.cfg.SaveEvery)
		defer stopSave()
	}

	daily := time.NewTimer(s.untilDaily())
	defer daily.Stop()

	slog.Info("scheduler started",
		"daily_at", s.cfg.DailyAt.String(), "regen_every", s.cfg.RegenEvery, "save_every", s.cfg.SaveEvery)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-daily.C:
			s.eng.DailyReset()
			daily.Reset(s.untilDaily())
		case <-regenC:
			s.eng.PeriodicRegen()
		case <-saveC:
			s.runSave(ctx)
		}
	}
}

func (s *Scheduler) untilDaily() time.Duration {
	now := s.now()
	return NextDaily(now, s.cfg.DailyAt).Sub(now)
}

func (s *Scheduler) runSave(ctx context.Context) {
	start := time.Now()

	err := s.save(ctx)
	if err != nil {
		slog.Error("periodic save failed", "error", err)
		return
	}

	slog.Info("state saved", "took", time.Since(start))
}

// tick returns a ticker channel, or nil (never fires) when every is zero.
func tick(every time.Duration) (<-chan time.Time, func()) {
	if every <= 0 {
		return nil, func() {}
	}

	t := time.NewTicker(every)

	return t.C, t.Stop
}
