package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/pkg/response"
)

// Health reports service liveness and database connectivity.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbStatus := "ok"

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				status = "degraded"
				dbStatus = "unreachable"
			}
		}

		response.Success(c, http.StatusOK, gin.H{
			"status":   status,
			"database": dbStatus,
		})
	}
}
