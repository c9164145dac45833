package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/health"
	"github.com/bbab/servicecenter/internal/models"
	"github.com/bbab/servicecenter/internal/services"
	"github.com/bbab/servicecenter/internal/sweep"
	"github.com/bbab/servicecenter/pkg/mail"
)

type nilFetcher[T any] struct{}

func (nilFetcher[T]) Fetch(context.Context, models.Organization) (*T, error) {
	return nil, health.ErrUptimeNotConfigured
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, mail.Message) error { return nil }

func buildTestRouter(t *testing.T, enableMetrics bool) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Organization{}, &models.Timer{}, &models.CacheEntry{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := cache.NewMemoryStore()

	orgSvc, err := services.NewOrganizationService(db)
	require.NoError(t, err)
	timerSvc, err := services.NewTimerService(db)
	require.NoError(t, err)

	healthSweep, err := sweep.NewHealthSweep(orgSvc, store,
		nilFetcher[health.UptimeResult]{},
		nilFetcher[health.SSLResult]{},
		nilFetcher[health.BackupResult]{},
		sweep.WithStagger(0),
	)
	require.NoError(t, err)

	timerSweep, err := sweep.NewTimerSweep(timerSvc, nopMailer{}, sweep.TimerSweepConfig{})
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		DB:            db,
		Store:         store,
		Organizations: orgSvc,
		Timers:        timerSvc,
		HealthSweep:   healthSweep,
		TimerSweep:    timerSweep,
		EnableMetrics: enableMetrics,
	})
	require.NoError(t, err)
	return router
}

func TestRouterHealthz(t *testing.T) {
	router := buildTestRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouterMetricsToggle(t *testing.T) {
	router := buildTestRouter(t, true)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	router = buildTestRouter(t, false)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterValidatesDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}
