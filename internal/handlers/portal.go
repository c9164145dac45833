package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/health"
	"github.com/bbab/servicecenter/internal/middleware"
	"github.com/bbab/servicecenter/internal/services"
	appErrors "github.com/bbab/servicecenter/pkg/errors"
	"github.com/bbab/servicecenter/pkg/response"
)

// PortalHandler serves the client-facing read-only views. Every route requires
// a verified capability token; the handler never accepts an organization id
// from the request itself.
type PortalHandler struct {
	orgs   *services.OrganizationService
	timers *services.TimerService
	store  cache.Store
}

// NewPortalHandler constructs a portal handler.
func NewPortalHandler(orgs *services.OrganizationService, timers *services.TimerService, store cache.Store) (*PortalHandler, error) {
	if orgs == nil || timers == nil || store == nil {
		return nil, errors.New("portal handler: organization service, timer service and cache store are required")
	}
	return &PortalHandler{orgs: orgs, timers: timers, store: store}, nil
}

// Overview returns the scoped organization together with its cached health
// snapshot, when one exists.
func (h *PortalHandler) Overview(c *gin.Context) {
	orgID, ok := middleware.PortalOrganization(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, services.ErrOrganizationNotFound) {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to load organization"))
		return
	}

	snap, found, err := health.LoadSnapshot(c.Request.Context(), h.store, orgID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to read snapshot"))
		return
	}

	payload := gin.H{
		"organization": gin.H{
			"id":   org.ID,
			"name": org.Name,
		},
	}
	if found {
		payload["health"] = snap
	}
	response.Success(c, http.StatusOK, payload)
}

// Timers returns the scoped organization's timers.
func (h *PortalHandler) Timers(c *gin.Context) {
	orgID, ok := middleware.PortalOrganization(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	timers, err := h.timers.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list timers"))
		return
	}
	response.Success(c, http.StatusOK, timers)
}
