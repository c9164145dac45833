package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/handlers"
)

func registerTimerRoutes(group *gin.RouterGroup, timers *handlers.TimerHandler) {
	timerGroup := group.Group("/timers")
	timerGroup.GET("", timers.ListRunning)
	timerGroup.POST("", timers.Create)
	timerGroup.POST("/:id/start", timers.Start)
	timerGroup.POST("/:id/stop", timers.Stop)
}
