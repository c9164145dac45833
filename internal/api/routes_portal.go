package api

import (
	"github.com/gin-gonic/gin"

	"github.com/bbab/servicecenter/internal/handlers"
)

func registerPortalRoutes(group *gin.RouterGroup, portal *handlers.PortalHandler) {
	portalGroup := group.Group("/portal")
	portalGroup.GET("/overview", portal.Overview)
	portalGroup.GET("/timers", portal.Timers)
}
