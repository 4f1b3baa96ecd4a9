// Package retention periodically deletes profiles older than the configured
// number of days.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/constants"
)

// Purger deletes rows older than days and reports how many profiles went.
type Purger interface {
	ClearOlderThan(ctx context.Context, days int) (int64, error)
}

// Config controls the purge schedule.
type Config struct {
	// Days to keep. Zero or less disables purging.
	Days int
	// Interval between purges; zero uses constants.DefaultRetentionInterval.
	Interval time.Duration
	Logger   zerolog.Logger
}

// Scheduler runs the purge job.
type Scheduler struct {
	purger   Purger
	interval time.Duration
	days     atomic.Int64
	logger   zerolog.Logger
}

// New returns a scheduler for purger.
func New(purger Purger, cfg Config) (*Scheduler, error) {
	if purger == nil {
		return nil, errors.New("retention: purger is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultRetentionInterval
	}
	s := &Scheduler{
		purger:   purger,
		interval: cfg.Interval,
		logger:   cfg.Logger.With().Str("component", "retention").Logger(),
	}
	s.days.Store(int64(cfg.Days))
	return s, nil
}

// SetDays changes the retention window for subsequent runs.
func (s *Scheduler) SetDays(days int) {
	if old := s.days.Swap(int64(days)); old != int64(days) {
		s.logger.Info().Int("days", days).Msg("Retention window changed")
	}
}

// Days returns the current retention window.
func (s *Scheduler) Days() int { return int(s.days.Load()) }

// RunOnce purges now. It is a no-op returning zero when retention is disabled.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	days := s.Days()
	if days < 1 {
		return 0, nil
	}

	start := time.Now()
	n, err := s.purger.ClearOlderThan(ctx, days)
	if err != nil {
		s.logger.Warn().Err(err).Int("days", days).Msg("Retention purge failed")
		return 0, err
	}
	s.logger.Info().
		Int("days", days).
		Int64("profiles_deleted", n).
		Dur("duration", time.Since(start)).
		Msg("Retention purge completed")
	return n, nil
}

// Run purges immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler(gocron.WithLogger(gocronLogger{s.logger}))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { _, _ = s.RunOnce(ctx) }),
		gocron.WithName("retention"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule retention job: %w", err)
	}

	s.logger.Info().Dur("interval", s.interval).Int("days", s.Days()).Msg("Retention scheduler started")
	sched.Start()
	<-ctx.Done()

	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// gocronLogger routes scheduler logs into zerolog.
type gocronLogger struct {
	l zerolog.Logger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Trace().Fields(args).Msg(msg) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Debug().Fields(args).Msg(msg) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warn().Fields(args).Msg(msg) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Error().Fields(args).Msg(msg) }
