package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/auth"
	"github.com/bbab/servicecenter/internal/cache"
	"github.com/bbab/servicecenter/internal/health"
	"github.com/bbab/servicecenter/internal/services"
	appErrors "github.com/bbab/servicecenter/pkg/errors"
	"github.com/bbab/servicecenter/pkg/response"
	"github.com/bbab/servicecenter/pkg/validator"
)

// OrganizationHandler exposes organization management and snapshot reads.
type OrganizationHandler struct {
	orgs         *services.OrganizationService
	store        cache.Store
	capabilities *auth.CapabilityService
}

// NewOrganizationHandler constructs an organization handler.
func NewOrganizationHandler(orgs *services.OrganizationService, store cache.Store, capabilities *auth.CapabilityService) (*OrganizationHandler, error) {
	if orgs == nil {
		return nil, errors.New("organization handler: service is required")
	}
	if store == nil {
		return nil, errors.New("organization handler: cache store is required")
	}
	return &OrganizationHandler{orgs: orgs, store: store, capabilities: capabilities}, nil
}

type monitorSettingsPayload struct {
	UptimeMonitorID string `json:"uptime_monitor_id"`
	UptimeAPIKey    string `json:"uptime_api_key"`
	SSLHost         string `json:"ssl_host"`
	BackupBucket    string `json:"backup_bucket"`
	BackupPrefix    string `json:"backup_prefix"`
}

type createOrganizationPayload struct {
	Name         string                 `json:"name" validate:"required,min=1,max=200"`
	ContactEmail string                 `json:"contact_email" validate:"omitempty,email"`
	Monitors     monitorSettingsPayload `json:"monitors"`
	Settings     map[string]any         `json:"settings"`
}

// List returns all organizations.
func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.orgs.List(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list organizations"))
		return
	}
	response.Success(c, http.StatusOK, orgs)
}

// Get returns one organization by id.
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgs.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrOrganizationNotFound) {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to load organization"))
		return
	}
	response.Success(c, http.StatusOK, org)
}

// Create registers a new organization.
func (h *OrganizationHandler) Create(c *gin.Context) {
	var payload createOrganizationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid organization payload"))
		return
	}
	if err := validator.ValidateStruct(payload); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	org, err := h.orgs.Create(c.Request.Context(), services.CreateOrganizationInput{
		Name:         payload.Name,
		ContactEmail: payload.ContactEmail,
		Monitors: services.MonitorSettingsInput{
			UptimeMonitorID: payload.Monitors.UptimeMonitorID,
			UptimeAPIKey:    payload.Monitors.UptimeAPIKey,
			SSLHost:         payload.Monitors.SSLHost,
			BackupBucket:    payload.Monitors.BackupBucket,
			BackupPrefix:    payload.Monitors.BackupPrefix,
		},
		Settings: payload.Settings,
	})
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}
	response.Success(c, http.StatusCreated, org)
}

// Health returns the cached combined health snapshot for one organization.
// The snapshot is read-only here; only the sweep writes it.
func (h *OrganizationHandler) Health(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.orgs.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrOrganizationNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to load organization"))
		return
	}

	snap, ok, err := health.LoadSnapshot(c.Request.Context(), h.store, id)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to read snapshot"))
		return
	}
	if !ok {
		response.Error(c, appErrors.ErrSnapshotUnavailable)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// PortalToken issues a signed, expiring capability token scoped to one
// organization for client-portal access.
func (h *OrganizationHandler) PortalToken(c *gin.Context) {
	if h.capabilities == nil {
		response.Error(c, appErrors.New("PORTAL_DISABLED", "Portal tokens are not configured", http.StatusServiceUnavailable))
		return
	}

	id := c.Param("id")
	if _, err := h.orgs.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrOrganizationNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "failed to load organization"))
		return
	}

	token, err := h.capabilities.Issue(id)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to issue portal token"))
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"token": token})
}
