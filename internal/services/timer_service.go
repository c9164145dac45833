package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/models"
)

var (
	// ErrTimerNotFound indicates the requested timer does not exist.
	ErrTimerNotFound = errors.New("timer service: timer not found")
	// ErrTimerNotRunning indicates a stop was requested for a timer that is not running.
	ErrTimerNotRunning = errors.New("timer service: timer is not running")
	// ErrTimerAlreadyRunning indicates a start was requested for a running timer.
	ErrTimerAlreadyRunning = errors.New("timer service: timer is already running")
)

// DefaultForgottenThreshold is how long a timer may run before the alerting
// sweep considers it forgotten.
const DefaultForgottenThreshold = 4 * time.Hour

// ForgottenTimer pairs an overdue running timer with its elapsed duration at
// query time. Derived, never persisted.
type ForgottenTimer struct {
	Timer   models.Timer
	Elapsed time.Duration
}

// TimerService manages time-tracking records.
type TimerService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTimerService constructs a TimerService instance.
func NewTimerService(db *gorm.DB) (*TimerService, error) {
	if db == nil {
		return nil, errors.New("timer service: db is required")
	}
	return &TimerService{db: db, now: time.Now}, nil
}

// WithClock overrides the clock, primarily for tests.
func (s *TimerService) WithClock(now func() time.Time) *TimerService {
	if now != nil {
		s.now = now
	}
	return s
}

// Create registers a new idle timer for an organization.
func (s *TimerService) Create(ctx context.Context, organizationID, description string) (*models.Timer, error) {
	ctx = ensureContext(ctx)

	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, errors.New("timer service: organization id is required")
	}

	timer := &models.Timer{
		OrganizationID: organizationID,
		Description:    strings.TrimSpace(description),
		Status:         models.TimerIdle,
	}
	if err := s.db.WithContext(ctx).Create(timer).Error; err != nil {
		return nil, fmt.Errorf("timer service: create timer: %w", err)
	}
	return timer, nil
}

// GetByID loads a timer.
func (s *TimerService) GetByID(ctx context.Context, id string) (*models.Timer, error) {
	ctx = ensureContext(ctx)

	var timer models.Timer
	err := s.db.WithContext(ctx).First(&timer, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTimerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("timer service: get timer: %w", err)
	}
	return &timer, nil
}

// Start transitions a timer from idle or stopped into running.
func (s *TimerService) Start(ctx context.Context, id string) (*models.Timer, error) {
	ctx = ensureContext(ctx)

	timer, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if timer.Status == models.TimerRunning {
		return nil, ErrTimerAlreadyRunning
	}

	started := s.now()
	timer.Status = models.TimerRunning
	timer.StartedAt = &started
	timer.StoppedAt = nil

	if err := s.db.WithContext(ctx).Save(timer).Error; err != nil {
		return nil, fmt.Errorf("timer service: start timer: %w", err)
	}
	return timer, nil
}

// Stop transitions a running timer into stopped.
func (s *TimerService) Stop(ctx context.Context, id string) (*models.Timer, error) {
	ctx = ensureContext(ctx)

	timer, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if timer.Status != models.TimerRunning {
		return nil, ErrTimerNotRunning
	}

	stopped := s.now()
	timer.Status = models.TimerStopped
	timer.StoppedAt = &stopped

	if err := s.db.WithContext(ctx).Save(timer).Error; err != nil {
		return nil, fmt.Errorf("timer service: stop timer: %w", err)
	}
	return timer, nil
}

// ListByOrganization returns all timers for one organization, newest first.
func (s *TimerService) ListByOrganization(ctx context.Context, organizationID string) ([]models.Timer, error) {
	ctx = ensureContext(ctx)

	var timers []models.Timer
	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Find(&timers).Error; err != nil {
		return nil, fmt.Errorf("timer service: list timers: %w", err)
	}
	return timers, nil
}

// ListRunning returns every running timer across all organizations.
func (s *TimerService) ListRunning(ctx context.Context) ([]models.Timer, error) {
	ctx = ensureContext(ctx)

	var timers []models.Timer
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.TimerRunning).
		Order("started_at ASC").
		Find(&timers).Error; err != nil {
		return nil, fmt.Errorf("timer service: list running timers: %w", err)
	}
	return timers, nil
}

// Forgotten returns running timers whose start time precedes now minus the
// threshold, oldest first. The result is recomputed on every call; nothing is
// persisted about previous sweeps.
func (s *TimerService) Forgotten(ctx context.Context, threshold time.Duration) ([]ForgottenTimer, error) {
	ctx = ensureContext(ctx)

	if threshold <= 0 {
		threshold = DefaultForgottenThreshold
	}

	now := s.now()
	cutoff := now.Add(-threshold)

	var timers []models.Timer
	if err := s.db.WithContext(ctx).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", models.TimerRunning, cutoff).
		Order("started_at ASC").
		Find(&timers).Error; err != nil {
		return nil, fmt.Errorf("timer service: query forgotten timers: %w", err)
	}

	forgotten := make([]ForgottenTimer, 0, len(timers))
	for _, timer := range timers {
		forgotten = append(forgotten, ForgottenTimer{
			Timer:   timer,
			Elapsed: timer.Elapsed(now),
		})
	}
	return forgotten, nil
}
