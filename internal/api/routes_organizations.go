package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/handlers"
)

func registerOrganizationRoutes(group *gin.RouterGroup, orgs *handlers.OrganizationHandler, timers *handlers.TimerHandler) {
	orgGroup := group.Group("/organizations")
	orgGroup.GET("", orgs.List)
	orgGroup.POST("", orgs.Create)
	orgGroup.GET("/:id", orgs.Get)
	orgGroup.GET("/:id/health", orgs.Health)
	orgGroup.GET("/:id/timers", timers.ListByOrganization)
	orgGroup.POST("/:id/portal-token", orgs.PortalToken)
}
