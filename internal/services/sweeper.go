package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// InactivePurger removes subscriptions that stayed inactive past a cutoff.
type InactivePurger interface {
	PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically purges long-inactive subscriptions from the registry.
type Sweeper struct {
	store  InactivePurger
	after  time.Duration
	logger *slog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// NewSweeper schedules the purge on a standard cron spec or descriptor such as "@daily".
func NewSweeper(store InactivePurger, schedule string, inactiveAfter time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		store:  store,
		after:  inactiveAfter,
		logger: logger,
		cron:   cron.New(),
		now:    time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running purge, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce purges subscriptions inactive for longer than the configured age.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.after)
	n, err := s.store.PurgeInactive(ctx, cutoff)
	if err != nil {
		s.logger.Error("subscription sweep failed", slog.Any("error", err))
		return 0, err
	}
	s.logger.Info("subscription sweep finished", slog.Int64("purged", n), slog.Time("cutoff", cutoff))
	return n, nil
}
