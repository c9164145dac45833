package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/handlers"
)

func registerSweepRoutes(group *gin.RouterGroup, sweeps *handlers.SweepHandler) {
	sweepGroup := group.Group("/sweeps")
	sweepGroup.POST("/health/run", sweeps.RunHealth)
	sweepGroup.POST("/timers/run", sweeps.RunTimers)
}
