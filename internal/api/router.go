package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/auth"
	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/handlers"
	"github.com/bbab/servicecenter/internal/middleware"
	"github.com/bbab/servicecenter/internal/services"
	"github.com/bbab/servicecenter/internal/sweep"
)

// Dependencies carries everything the router needs. All fields except
// Capabilities are required.
type Dependencies struct {
	DB            *gorm.DB
	Store         cache.Store
	Organizations *services.OrganizationService
	Timers        *services.TimerService
	HealthSweep   *sweep.HealthSweep
	TimerSweep    *sweep.TimerSweep
	Capabilities  *auth.CapabilityService
	EnableMetrics bool
}

func (d Dependencies) validate() error {
	if d.DB == nil {
		return errors.New("api: database is required")
	}
	if d.Store == nil {
		return errors.New("api: cache store is required")
	}
	if d.Organizations == nil || d.Timers == nil {
		return errors.New("api: organization and timer services are required")
	}
	if d.HealthSweep == nil || d.TimerSweep == nil {
		return errors.New("api: sweeps are required")
	}
	return nil
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	if deps.EnableMetrics {
		router.Use(middleware.Metrics())
	}
	router.Use(middleware.Portal(deps.Capabilities))

	orgHandler, err := handlers.NewOrganizationHandler(deps.Organizations, deps.Store, deps.Capabilities)
	if err != nil {
		return nil, err
	}
	timerHandler, err := handlers.NewTimerHandler(deps.Timers)
	if err != nil {
		return nil, err
	}
	sweepHandler, err := handlers.NewSweepHandler(deps.HealthSweep, deps.TimerSweep)
	if err != nil {
		return nil, err
	}
	portalHandler, err := handlers.NewPortalHandler(deps.Organizations, deps.Timers, deps.Store)
	if err != nil {
		return nil, err
	}

	router.GET("/healthz", handlers.Health(deps.DB))
	if deps.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	apiGroup := router.Group("/api")
	registerOrganizationRoutes(apiGroup, orgHandler, timerHandler)
	registerTimerRoutes(apiGroup, timerHandler)
	registerSweepRoutes(apiGroup, sweepHandler)
	registerPortalRoutes(apiGroup, portalHandler)

	return router, nil
}
