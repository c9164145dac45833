package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bbab/servicecenter/internal/auth"
	"github.com/bbab/servicecenter/pkg/logger"
)

const (
	portalTokenHeader = "X-Portal-Token"
	portalTokenCookie = "bbab_portal_token"
	portalOrgKey      = "portal_organization_id"
)

// Portal resolves an optional capability token from the request and, when it
// verifies, scopes the request to that organization. A missing or invalid
// token degrades to no impersonation; the request continues unscoped and the
// handler decides whether that is acceptable.
func Portal(capabilities *auth.CapabilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if capabilities == nil {
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(portalTokenHeader))
		if token == "" {
			if cookie, err := c.Cookie(portalTokenCookie); err == nil {
				token = strings.TrimSpace(cookie)
			}
		}
		if token == "" {
			c.Next()
			return
		}

		claims, err := capabilities.Verify(token)
		if err != nil {
			logger.WithModule("portal").Debug("capability token rejected", zap.Error(err))
			c.Next()
			return
		}

		c.Set(portalOrgKey, claims.OrganizationID)
		c.Next()
	}
}

// PortalOrganization returns the organization id resolved from a verified
// capability token, if any.
func PortalOrganization(c *gin.Context) (string, bool) {
	value, exists := c.Get(portalOrgKey)
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}
