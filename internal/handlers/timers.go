package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/services"
	appErrors "github.com/bbab/servicecenter/pkg/errors"
	"github.com/bbab/servicecenter/pkg/response"
	"github.com/bbab/servicecenter/pkg/validator"
)

// TimerHandler exposes minimal timer CRUD so the tracked entities driving the
// alerting sweep can be managed through the same API.
type TimerHandler struct {
	timers *services.TimerService
}

// NewTimerHandler constructs a timer handler.
func NewTimerHandler(timers *services.TimerService) (*TimerHandler, error) {
	if timers == nil {
		return nil, errors.New("timer handler: service is required")
	}
	return &TimerHandler{timers: timers}, nil
}

type createTimerPayload struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	Description    string `json:"description" validate:"max=500"`
}

// Create registers a new idle timer.
func (h *TimerHandler) Create(c *gin.Context) {
	var payload createTimerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid timer payload"))
		return
	}
	if err := validator.ValidateStruct(payload); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	timer, err := h.timers.Create(c.Request.Context(), payload.OrganizationID, payload.Description)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}
	response.Success(c, http.StatusCreated, timer)
}

// ListRunning returns every running timer.
func (h *TimerHandler) ListRunning(c *gin.Context) {
	timers, err := h.timers.ListRunning(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list running timers"))
		return
	}
	response.Success(c, http.StatusOK, timers)
}

// ListByOrganization returns all timers for one organization.
func (h *TimerHandler) ListByOrganization(c *gin.Context) {
	timers, err := h.timers.ListByOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list timers"))
		return
	}
	response.Success(c, http.StatusOK, timers)
}

// Start transitions a timer into running.
func (h *TimerHandler) Start(c *gin.Context) {
	timer, err := h.timers.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderTransitionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, timer)
}

// Stop transitions a running timer into stopped.
func (h *TimerHandler) Stop(c *gin.Context) {
	timer, err := h.timers.Stop(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderTransitionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, timer)
}

func (h *TimerHandler) renderTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTimerNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrTimerAlreadyRunning), errors.Is(err, services.ErrTimerNotRunning):
		response.Error(c, appErrors.NewBadRequest(err.Error()))
	default:
		response.Error(c, appErrors.Wrap(err, "timer transition failed"))
	}
}
