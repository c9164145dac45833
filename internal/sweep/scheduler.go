package sweep

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/bbab/servicecenter/pkg/logger"
)

const (
	defaultHealthSchedule = "@hourly"
	defaultTimerSchedule  = "@every 30m"
)

// Scheduler registers both sweeps with a cron instance. Pending invocations of
// the same job are deduplicated: a tick that fires while the previous one is
// still running is skipped, so two ticks of one sweep never overlap.
type Scheduler struct {
	cron   *cron.Cron
	health *HealthSweep
	timers *TimerSweep

	healthSchedule string
	timerSchedule  string
}

// SchedulerOption customises the Scheduler.
type SchedulerOption func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithHealthSchedule overrides the cron specification for the health sweep.
func WithHealthSchedule(spec string) SchedulerOption {
	return func(s *Scheduler) {
		if spec != "" {
			s.healthSchedule = spec
		}
	}
}

// WithTimerSchedule overrides the cron specification for the alerting sweep.
func WithTimerSchedule(spec string) SchedulerOption {
	return func(s *Scheduler) {
		if spec != "" {
			s.timerSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler. A nil sweep disables its job.
func NewScheduler(health *HealthSweep, timers *TimerSweep, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		health:         health,
		timers:         timers,
		healthSchedule: defaultHealthSchedule,
		timerSchedule:  defaultTimerSchedule,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}

	return s
}

// Start registers the enabled sweeps and launches the scheduler.
func (s *Scheduler) Start() error {
	if s.health == nil && s.timers == nil {
		return errors.New("scheduler: no sweeps configured")
	}

	if s.health != nil {
		if _, err := s.cron.AddFunc(s.healthSchedule, func() {
			s.health.RunOnce(context.Background())
		}); err != nil {
			return err
		}
		logger.WithModule("scheduler").Info("health sweep registered")
	}

	if s.timers != nil {
		if _, err := s.cron.AddFunc(s.timerSchedule, func() {
			s.timers.RunOnce(context.Background())
		}); err != nil {
			return err
		}
		logger.WithModule("scheduler").Info("timer sweep registered")
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running sweep to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}
