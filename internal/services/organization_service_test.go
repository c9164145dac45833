package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.Timer{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestOrganizationServiceLifecycle(t *testing.T) {
	db := openServiceTestDB(t)

	orgSvc, err := NewOrganizationService(db)
	require.NoError(t, err)

	ctx := context.Background()

	org, err := orgSvc.Create(ctx, CreateOrganizationInput{
		Name:         "Acme Corp",
		ContactEmail: "ops@acme.example",
		Monitors: MonitorSettingsInput{
			UptimeMonitorID: "789012345",
			UptimeAPIKey:    "ur-key",
			SSLHost:         "acme.example",
		},
		Settings: map[string]any{
			"timezone": "UTC",
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, org.ID)
	require.True(t, org.Active)

	retrieved, err := orgSvc.GetByID(ctx, org.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", retrieved.Name)
	require.Equal(t, "789012345", retrieved.UptimeMonitorID)

	all, err := orgSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	inactive := false
	updated, err := orgSvc.Update(ctx, org.ID, UpdateOrganizationInput{
		Active: &inactive,
	})
	require.NoError(t, err)
	require.False(t, updated.Active)

	active, err := orgSvc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, orgSvc.Delete(ctx, org.ID))

	_, err = orgSvc.GetByID(ctx, org.ID)
	require.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestOrganizationServiceRejectsInconsistentMonitorConfig(t *testing.T) {
	db := openServiceTestDB(t)

	orgSvc, err := NewOrganizationService(db)
	require.NoError(t, err)

	_, err = orgSvc.Create(context.Background(), CreateOrganizationInput{
		Name: "Half Configured",
		Monitors: MonitorSettingsInput{
			UptimeMonitorID: "123",
		},
	})
	require.Error(t, err)

	_, err = orgSvc.Create(context.Background(), CreateOrganizationInput{
		Name: "Prefix Without Bucket",
		Monitors: MonitorSettingsInput{
			BackupPrefix: "nightly/",
		},
	})
	require.Error(t, err)
}

func TestOrganizationServiceRejectsBadContactEmail(t *testing.T) {
	db := openServiceTestDB(t)

	orgSvc, err := NewOrganizationService(db)
	require.NoError(t, err)

	_, err = orgSvc.Create(context.Background(), CreateOrganizationInput{
		Name:         "Bad Email",
		ContactEmail: "not-an-address",
	})
	require.Error(t, err)
}
