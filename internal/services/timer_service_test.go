package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bbab/servicecenter/internal/models"
)

func TestTimerServiceLifecycle(t *testing.T) {
	db := openServiceTestDB(t)
	ctx := context.Background()

	orgSvc, err := NewOrganizationService(db)
	require.NoError(t, err)
	org, err := orgSvc.Create(ctx, CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	timerSvc, err := NewTimerService(db)
	require.NoError(t, err)

	timer, err := timerSvc.Create(ctx, org.ID, "quarterly report")
	require.NoError(t, err)
	require.Equal(t, models.TimerIdle, timer.Status)

	started, err := timerSvc.Start(ctx, timer.ID)
	require.NoError(t, err)
	require.Equal(t, models.TimerRunning, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = timerSvc.Start(ctx, timer.ID)
	require.ErrorIs(t, err, ErrTimerAlreadyRunning)

	running, err := timerSvc.ListRunning(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)

	stopped, err := timerSvc.Stop(ctx, timer.ID)
	require.NoError(t, err)
	require.Equal(t, models.TimerStopped, stopped.Status)
	require.NotNil(t, stopped.StoppedAt)

	_, err = timerSvc.Stop(ctx, timer.ID)
	require.ErrorIs(t, err, ErrTimerNotRunning)
}

func TestTimerServiceForgottenThreshold(t *testing.T) {
	db := openServiceTestDB(t)
	ctx := context.Background()

	orgSvc, err := NewOrganizationService(db)
	require.NoError(t, err)
	org, err := orgSvc.Create(ctx, CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	timerSvc, err := NewTimerService(db)
	require.NoError(t, err)
	timerSvc.WithClock(func() time.Time { return now })

	startRunningTimer := func(desc string, startedAgo time.Duration) models.Timer {
		t.Helper()
		started := now.Add(-startedAgo)
		timer := models.Timer{
			OrganizationID: org.ID,
			Description:    desc,
			Status:         models.TimerRunning,
			StartedAt:      &started,
		}
		require.NoError(t, db.Create(&timer).Error)
		return timer
	}

	overdue := startRunningTimer("left running overnight", 5*time.Hour)
	startRunningTimer("still fine", 3*time.Hour)

	forgotten, err := timerSvc.Forgotten(ctx, 4*time.Hour)
	require.NoError(t, err)
	require.Len(t, forgotten, 1)
	require.Equal(t, overdue.ID, forgotten[0].Timer.ID)
	require.Equal(t, 5*time.Hour, forgotten[0].Elapsed)
}

func TestTimerServiceForgottenIgnoresStoppedAndIdle(t *testing.T) {
	db := openServiceTestDB(t)
	ctx := context.Background()

	orgSvc, err := NewOrganizationService(db)
	require.NoError(t, err)
	org, err := orgSvc.Create(ctx, CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	now := time.Now()
	old := now.Add(-10 * time.Hour)

	stoppedAt := now.Add(-6 * time.Hour)
	require.NoError(t, db.Create(&models.Timer{
		OrganizationID: org.ID,
		Status:         models.TimerStopped,
		StartedAt:      &old,
		StoppedAt:      &stoppedAt,
	}).Error)
	require.NoError(t, db.Create(&models.Timer{
		OrganizationID: org.ID,
		Status:         models.TimerIdle,
	}).Error)

	timerSvc, err := NewTimerService(db)
	require.NoError(t, err)

	forgotten, err := timerSvc.Forgotten(ctx, 4*time.Hour)
	require.NoError(t, err)
	require.Empty(t, forgotten)
}
