package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/auth"
	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/health"
	"github.com/bbab/servicecenter/internal/middleware"
	"github.com/bbab/servicecenter/internal/models"
	"github.com/bbab/servicecenter/internal/services"
	"github.com/bbab/servicecenter/internal/sweep"
	"github.com/bbab/servicecenter/pkg/mail"
	"github.com/bbab/servicecenter/pkg/response"
)

type handlerTestEnv struct {
	db     *gorm.DB
	store  cache.Store
	orgs   *services.OrganizationService
	timers *services.TimerService
	caps   *auth.CapabilityService
}

func setupHandlerTestEnv(t *testing.T) handlerTestEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.Timer{},
		&models.CacheEntry{},
	))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	orgSvc, err := services.NewOrganizationService(db)
	require.NoError(t, err)
	timerSvc, err := services.NewTimerService(db)
	require.NoError(t, err)

	caps, err := auth.NewCapabilityService(auth.CapabilityConfig{
		Secret: "handler-test-secret",
		Issuer: "test",
	})
	require.NoError(t, err)

	return handlerTestEnv{
		db:     db,
		store:  cache.NewMemoryStore(),
		orgs:   orgSvc,
		timers: timerSvc,
		caps:   caps,
	}
}

func (e handlerTestEnv) createOrganization(t *testing.T, name string) models.Organization {
	t.Helper()

	org, err := e.orgs.Create(context.Background(), services.CreateOrganizationInput{Name: name})
	require.NoError(t, err)
	return *org
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOrganizationHandlerCreateAndGet(t *testing.T) {
	env := setupHandlerTestEnv(t)

	handler, err := NewOrganizationHandler(env.orgs, env.store, env.caps)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/organizations", handler.Create)
	router.GET("/api/organizations/:id", handler.Get)

	rec := performJSON(t, router, http.MethodPost, "/api/organizations", gin.H{
		"name":          "Acme Widgets",
		"contact_email": "ops@acme.example",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)

	payload, ok := created.Data.(map[string]any)
	require.True(t, ok)
	id, ok := payload["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	rec = performJSON(t, router, http.MethodGet, "/api/organizations/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodGet, "/api/organizations/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrganizationHandlerCreateRejectsInvalidPayload(t *testing.T) {
	env := setupHandlerTestEnv(t)

	handler, err := NewOrganizationHandler(env.orgs, env.store, env.caps)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/organizations", handler.Create)

	rec := performJSON(t, router, http.MethodPost, "/api/organizations", gin.H{
		"contact_email": "ops@acme.example",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performJSON(t, router, http.MethodPost, "/api/organizations", gin.H{
		"name":          "Acme Widgets",
		"contact_email": "not-an-email",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrganizationHealthSnapshot(t *testing.T) {
	env := setupHandlerTestEnv(t)
	org := env.createOrganization(t, "Acme Widgets")

	handler, err := NewOrganizationHandler(env.orgs, env.store, env.caps)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/api/organizations/:id/health", handler.Health)

	rec := performJSON(t, router, http.MethodGet, "/api/organizations/"+org.ID+"/health", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "SNAPSHOT_UNAVAILABLE", body.Error.Code)

	snap := health.Snapshot{
		OrganizationID: org.ID,
		GeneratedAt:    time.Now().UTC(),
		SSL:            &health.SSLResult{Subject: "acme.example", DaysRemaining: 42},
	}
	require.NoError(t, health.StoreSnapshot(context.Background(), env.store, snap, time.Minute))

	rec = performJSON(t, router, http.MethodGet, "/api/organizations/"+org.ID+"/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "acme.example")
}

func TestTimerHandlerLifecycle(t *testing.T) {
	env := setupHandlerTestEnv(t)
	org := env.createOrganization(t, "Acme Widgets")

	handler, err := NewTimerHandler(env.timers)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/timers", handler.Create)
	router.GET("/api/timers", handler.ListRunning)
	router.POST("/api/timers/:id/start", handler.Start)
	router.POST("/api/timers/:id/stop", handler.Stop)

	rec := performJSON(t, router, http.MethodPost, "/api/timers", gin.H{
		"organization_id": org.ID,
		"description":     "maintenance window",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	payload, ok := created.Data.(map[string]any)
	require.True(t, ok)
	timerID, ok := payload["id"].(string)
	require.True(t, ok)

	rec = performJSON(t, router, http.MethodPost, "/api/timers/"+timerID+"/start", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Starting twice is a client error, not a server one.
	rec = performJSON(t, router, http.MethodPost, "/api/timers/"+timerID+"/start", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performJSON(t, router, http.MethodGet, "/api/timers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "maintenance window")

	rec = performJSON(t, router, http.MethodPost, "/api/timers/"+timerID+"/stop", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performJSON(t, router, http.MethodPost, "/api/timers/unknown/stop", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepHandlerRunNow(t *testing.T) {
	env := setupHandlerTestEnv(t)
	env.createOrganization(t, "Acme Widgets")

	healthSweep, err := sweep.NewHealthSweep(env.orgs, env.store,
		stubFetcher[health.UptimeResult]{err: health.ErrUptimeNotConfigured},
		stubFetcher[health.SSLResult]{err: health.ErrSSLNotConfigured},
		stubFetcher[health.BackupResult]{err: health.ErrBackupNotConfigured},
		sweep.WithStagger(0),
	)
	require.NoError(t, err)

	timerSweep, err := sweep.NewTimerSweep(env.timers, discardMailer{}, sweep.TimerSweepConfig{
		Recipients: []string{"ops@example.com"},
	})
	require.NoError(t, err)

	handler, err := NewSweepHandler(healthSweep, timerSweep)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/sweeps/health/run", handler.RunHealth)
	router.POST("/api/sweeps/timers/run", handler.RunTimers)

	rec := performJSON(t, router, http.MethodPost, "/api/sweeps/health/run", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(1), data["count"])

	rec = performJSON(t, router, http.MethodPost, "/api/sweeps/timers/run", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	data, ok = body.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(0), data["count"])
}

func TestPortalTokenFlow(t *testing.T) {
	env := setupHandlerTestEnv(t)
	org := env.createOrganization(t, "Acme Widgets")

	orgHandler, err := NewOrganizationHandler(env.orgs, env.store, env.caps)
	require.NoError(t, err)
	portalHandler, err := NewPortalHandler(env.orgs, env.timers, env.store)
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.Portal(env.caps))
	router.POST("/api/organizations/:id/portal-token", orgHandler.PortalToken)
	router.GET("/api/portal/overview", portalHandler.Overview)
	router.GET("/api/portal/timers", portalHandler.Timers)

	rec := performJSON(t, router, http.MethodPost, "/api/organizations/"+org.ID+"/portal-token", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	payload, ok := issued.Data.(map[string]any)
	require.True(t, ok)
	token, ok := payload["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	header := http.Header{}
	header.Set("X-Portal-Token", token)
	rec = performJSON(t, router, http.MethodGet, "/api/portal/overview", nil, header)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Acme Widgets")

	// A garbage token degrades to no impersonation rather than a hard error.
	header.Set("X-Portal-Token", "not-a-token")
	rec = performJSON(t, router, http.MethodGet, "/api/portal/overview", nil, header)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performJSON(t, router, http.MethodGet, "/api/portal/timers", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubFetcher[T any] struct {
	result *T
	err    error
}

func (s stubFetcher[T]) Fetch(context.Context, models.Organization) (*T, error) {
	return s.result, s.err
}

type discardMailer struct{}

func (discardMailer) Send(context.Context, mail.Message) error { return nil }
