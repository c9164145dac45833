package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/health"
	"github.com/bbab/servicecenter/internal/models"
	"github.com/bbab/servicecenter/pkg/logger"
	"github.com/bbab/servicecenter/pkg/metrics"
)

const (
	defaultStagger     = 500 * time.Millisecond
	defaultCutoff      = 4 * time.Minute
	defaultSnapshotTTL = 30 * time.Minute
)

// OrganizationLister provides the organizations eligible for a sweep tick.
type OrganizationLister interface {
	ListActive(ctx context.Context) ([]models.Organization, error)
}

// UptimeFetcher retrieves the uptime sub-result for one organization.
type UptimeFetcher interface {
	Fetch(ctx context.Context, org models.Organization) (*health.UptimeResult, error)
}

// SSLFetcher retrieves the certificate sub-result for one organization.
type SSLFetcher interface {
	Fetch(ctx context.Context, org models.Organization) (*health.SSLResult, error)
}

// BackupFetcher retrieves the backup-freshness sub-result for one organization.
type BackupFetcher interface {
	Fetch(ctx context.Context, org models.Organization) (*health.BackupResult, error)
}

// HealthSweep walks all active organizations, invokes the three metric
// fetchers for each, and writes one combined snapshot per organization into
// the cache. Organizations are processed strictly sequentially; the only
// shared mutable resource is the cache, and each key has a single writer.
type HealthSweep struct {
	orgs   OrganizationLister
	store  cache.Store
	uptime UptimeFetcher
	ssl    SSLFetcher
	backup BackupFetcher

	stagger     time.Duration
	cutoff      time.Duration
	snapshotTTL time.Duration
	now         func() time.Time
	sleep       func(time.Duration)
	log         *zap.Logger
}

// HealthSweepOption customises the sweep.
type HealthSweepOption func(*HealthSweep)

// WithStagger sets the fixed delay inserted between organizations.
func WithStagger(d time.Duration) HealthSweepOption {
	return func(s *HealthSweep) {
		if d >= 0 {
			s.stagger = d
		}
	}
}

// WithCutoff sets the wall-clock safety cutoff for one tick.
func WithCutoff(d time.Duration) HealthSweepOption {
	return func(s *HealthSweep) {
		if d > 0 {
			s.cutoff = d
		}
	}
}

// WithSnapshotTTL sets the cache lifetime for written snapshots. Keep it
// longer than the sweep interval so one missed tick does not blank results.
func WithSnapshotTTL(d time.Duration) HealthSweepOption {
	return func(s *HealthSweep) {
		if d > 0 {
			s.snapshotTTL = d
		}
	}
}

// WithHealthClock overrides the clock, primarily for tests.
func WithHealthClock(now func() time.Time) HealthSweepOption {
	return func(s *HealthSweep) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep overrides the stagger sleep, primarily for tests.
func WithSleep(sleep func(time.Duration)) HealthSweepOption {
	return func(s *HealthSweep) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewHealthSweep constructs the dispatcher. Fetchers may be nil; a nil
// fetcher behaves as not-configured for every organization.
func NewHealthSweep(orgs OrganizationLister, store cache.Store, uptime UptimeFetcher, ssl SSLFetcher, backup BackupFetcher, opts ...HealthSweepOption) (*HealthSweep, error) {
	if orgs == nil {
		return nil, errors.New("health sweep: organization lister is required")
	}
	if store == nil {
		return nil, errors.New("health sweep: cache store is required")
	}

	s := &HealthSweep{
		orgs:        orgs,
		store:       store,
		uptime:      uptime,
		ssl:         ssl,
		backup:      backup,
		stagger:     defaultStagger,
		cutoff:      defaultCutoff,
		snapshotTTL: defaultSnapshotTTL,
		now:         time.Now,
		sleep:       time.Sleep,
		log:         logger.WithJob("health-sweep"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunOnce executes a full sweep tick. Shared by the cron schedule and the
// manual trigger endpoint.
func (s *HealthSweep) RunOnce(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	started := s.now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("health").Observe(s.now().Sub(started).Seconds())
	}()

	orgs, err := s.orgs.ListActive(ctx)
	if err != nil {
		// Dispatcher-level failure: abort the whole tick, retry next cycle.
		s.log.Error("cannot list organizations, aborting tick", zap.Error(err))
		metrics.SweepRuns.WithLabelValues("health", "failure").Inc()
		return Result{
			Success: false,
			Message: fmt.Sprintf("health sweep aborted: %v", err),
		}
	}

	deadline := started.Add(s.cutoff)
	processed := 0
	abandoned := 0
	errored := 0

	for idx, org := range orgs {
		if s.now().After(deadline) {
			abandoned = len(orgs) - idx
			s.log.Warn("wall-clock cutoff reached, abandoning remaining organizations",
				zap.Int("remaining", abandoned),
				zap.Duration("cutoff", s.cutoff),
			)
			break
		}

		snap := s.collect(ctx, org)
		if snap.UptimeError != "" || snap.SSLError != "" || snap.BackupError != "" {
			errored++
		}

		if err := health.StoreSnapshot(ctx, s.store, snap, s.snapshotTTL); err != nil {
			s.log.Error("write snapshot failed",
				zap.String("organization_id", org.ID),
				zap.Error(err),
			)
			errored++
		}
		processed++

		if idx < len(orgs)-1 && s.stagger > 0 {
			s.sleep(s.stagger)
		}
	}

	outcome := "success"
	if errored > 0 || abandoned > 0 {
		outcome = "partial"
	}
	metrics.SweepRuns.WithLabelValues("health", outcome).Inc()

	s.log.Info("health sweep finished",
		zap.Int("processed", processed),
		zap.Int("abandoned", abandoned),
		zap.Int("with_errors", errored),
	)

	return Result{
		Success: true,
		Message: fmt.Sprintf("processed %d of %d organizations", processed, len(orgs)),
		Data: map[string]any{
			"count":       processed,
			"abandoned":   abandoned,
			"with_errors": errored,
		},
	}
}

// collect runs the three fetchers for one organization. Each fetcher is
// isolated: an error or panic populates only its own sub-field.
func (s *HealthSweep) collect(ctx context.Context, org models.Organization) health.Snapshot {
	snap := health.Snapshot{
		OrganizationID: org.ID,
		GeneratedAt:    s.now().UTC(),
	}

	if s.uptime != nil {
		result, err := runFetch(ctx, org, s.uptime.Fetch)
		switch {
		case errors.Is(err, health.ErrUptimeNotConfigured):
			metrics.FetchResults.WithLabelValues("uptime", "skipped").Inc()
			s.log.Debug("uptime not configured", zap.String("organization_id", org.ID))
		case err != nil:
			metrics.FetchResults.WithLabelValues("uptime", "error").Inc()
			s.log.Error("uptime fetch failed", zap.String("organization_id", org.ID), zap.Error(err))
			snap.UptimeError = err.Error()
		default:
			metrics.FetchResults.WithLabelValues("uptime", "success").Inc()
			snap.Uptime = result
		}
	}

	if s.ssl != nil {
		result, err := runFetch(ctx, org, s.ssl.Fetch)
		switch {
		case errors.Is(err, health.ErrSSLNotConfigured):
			metrics.FetchResults.WithLabelValues("ssl", "skipped").Inc()
			s.log.Debug("ssl not configured", zap.String("organization_id", org.ID))
		case err != nil:
			metrics.FetchResults.WithLabelValues("ssl", "error").Inc()
			s.log.Error("ssl fetch failed", zap.String("organization_id", org.ID), zap.Error(err))
			snap.SSLError = err.Error()
		default:
			metrics.FetchResults.WithLabelValues("ssl", "success").Inc()
			snap.SSL = result
		}
	}

	if s.backup != nil {
		result, err := runFetch(ctx, org, s.backup.Fetch)
		switch {
		case errors.Is(err, health.ErrBackupNotConfigured):
			metrics.FetchResults.WithLabelValues("backup", "skipped").Inc()
			s.log.Debug("backup not configured", zap.String("organization_id", org.ID))
		case err != nil:
			metrics.FetchResults.WithLabelValues("backup", "error").Inc()
			s.log.Error("backup fetch failed", zap.String("organization_id", org.ID), zap.Error(err))
			snap.BackupError = err.Error()
		default:
			metrics.FetchResults.WithLabelValues("backup", "success").Inc()
			snap.Backup = result
		}
	}

	return snap
}

// runFetch invokes one fetcher and converts panics into errors so a broken
// integration cannot take down the sweep.
func runFetch[T any](ctx context.Context, org models.Organization, fetch func(context.Context, models.Organization) (*T, error)) (result *T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			switch v := rec.(type) {
			case error:
				err = fmt.Errorf("fetcher panic: %w", v)
			default:
				err = fmt.Errorf("fetcher panic: %v", v)
			}
		}
	}()

	return fetch(ctx, org)
}
