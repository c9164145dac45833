package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/sweep"
	appErrors "github.com/bbab/servicecenter/pkg/errors"
	"github.com/bbab/servicecenter/pkg/response"
)

// SweepHandler exposes the idempotent "run now" entry points for both sweeps.
// They share the exact logic path with the scheduled invocations.
type SweepHandler struct {
	health *sweep.HealthSweep
	timers *sweep.TimerSweep
}

// NewSweepHandler constructs a sweep handler.
func NewSweepHandler(health *sweep.HealthSweep, timers *sweep.TimerSweep) (*SweepHandler, error) {
	if health == nil && timers == nil {
		return nil, errors.New("sweep handler: at least one sweep is required")
	}
	return &SweepHandler{health: health, timers: timers}, nil
}

// RunHealth triggers one health sweep tick immediately.
func (h *SweepHandler) RunHealth(c *gin.Context) {
	if h.health == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	h.render(c, h.health.RunOnce(c.Request.Context()))
}

// RunTimers triggers one forgotten-timer sweep immediately.
func (h *SweepHandler) RunTimers(c *gin.Context) {
	if h.timers == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	h.render(c, h.timers.RunOnce(c.Request.Context()))
}

func (h *SweepHandler) render(c *gin.Context, result sweep.Result) {
	if result.Success {
		response.SuccessWithMessage(c, http.StatusOK, result.Message, result.Data)
		return
	}
	c.JSON(http.StatusBadGateway, response.Response{
		Success: false,
		Message: result.Message,
		Data:    result.Data,
	})
}
