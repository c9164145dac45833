package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/api"
	"github.com/bbab/servicecenter/internal/app"
	"github.com/bbab/servicecenter/internal/auth"
	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/database"
	"github.com/bbab/servicecenter/internal/health"
	"github.com/bbab/servicecenter/internal/services"
	"github.com/bbab/servicecenter/internal/sweep"
	"github.com/bbab/servicecenter/pkg/logger"
	"github.com/bbab/servicecenter/pkg/mail"
)

// runtimeStack holds every long-lived component built during bootstrap, in
// the order it must be torn down in reverse.
type runtimeStack struct {
	DB        *gorm.DB
	Store     cache.Store
	Scheduler *sweep.Scheduler
	Router    http.Handler
	Server    *http.Server
}

func buildRuntime(ctx context.Context, cfg *app.Config) (*runtimeStack, error) {
	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	store := buildCacheStore(cfg, db)

	orgSvc, err := services.NewOrganizationService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise organization service: %w", err)
	}
	timerSvc, err := services.NewTimerService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise timer service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	var capabilities *auth.CapabilityService
	if strings.TrimSpace(cfg.Portal.Secret) != "" {
		capabilities, err = auth.NewCapabilityService(cfg.Portal.CapabilityConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise capability service: %w", err)
		}
	} else {
		log.Info("portal secret not configured; portal tokens disabled")
	}

	uptimeClient := health.NewUptimeClient(cfg.Uptime.BaseURL, cfg.Uptime.Timeout)
	sslInspector := health.NewSSLInspector(cfg.SSL.Timeout)
	backupLister, err := health.NewBackupLister(ctx, health.BackupStorageConfig{
		Endpoint:  cfg.Backup.Endpoint,
		Region:    cfg.Backup.Region,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
		Timeout:   cfg.Backup.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise backup lister: %w", err)
	}

	healthSweep, err := sweep.NewHealthSweep(orgSvc, store, uptimeClient, sslInspector, backupLister,
		sweep.WithStagger(cfg.Sweeps.Health.Stagger),
		sweep.WithCutoff(cfg.Sweeps.Health.Cutoff),
		sweep.WithSnapshotTTL(cfg.Sweeps.Health.SnapshotTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise health sweep: %w", err)
	}

	timerSweep, err := sweep.NewTimerSweep(timerSvc, mailer, sweep.TimerSweepConfig{
		Recipients: cfg.Sweeps.Timers.Recipients,
		BaseURL:    cfg.Sweeps.Timers.BaseURL,
		Threshold:  cfg.Sweeps.Timers.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise timer sweep: %w", err)
	}

	scheduler := sweep.NewScheduler(healthSweep, timerSweep,
		sweep.WithHealthSchedule(cfg.Sweeps.Health.Schedule),
		sweep.WithTimerSchedule(cfg.Sweeps.Timers.Schedule),
	)

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		Store:         store,
		Organizations: orgSvc,
		Timers:        timerSvc,
		HealthSweep:   healthSweep,
		TimerSweep:    timerSweep,
		Capabilities:  capabilities,
		EnableMetrics: cfg.Monitoring.Prometheus.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	return &runtimeStack{
		DB:        db,
		Store:     store,
		Scheduler: scheduler,
		Router:    router,
	}, nil
}

// StartScheduler launches the cron jobs.
func (s *runtimeStack) StartScheduler() error {
	return s.Scheduler.Start()
}

// Shutdown tears the stack down in reverse build order, collecting every
// failure instead of stopping at the first one.
func (s *runtimeStack) Shutdown() error {
	var errs error

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.DB != nil {
		sqlDB, err := s.DB.DB()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("obtain sql db: %w", err))
		} else if err := sqlDB.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errs
}

func buildCacheStore(cfg *app.Config, db *gorm.DB) cache.Store {
	if strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), "memory") {
		return cache.NewMemoryStore()
	}
	return cache.NewDatabaseStore(db)
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}
