package middleware

import "github.com/gin-gonic/gin"

// HeaderXTenantID is set by the gateway after it has authenticated the
// organizer account.
const HeaderXTenantID = "X-Tenant-ID"

// TenantIDContextKey is the gin context key the rate limiter reads
const TenantIDContextKey = "tenant_id"

// GetTenantID retrieves the tenant ID from the Gin context
func GetTenantID(c *gin.Context) string {
	if tenantID, exists := c.Get(TenantIDContextKey); exists {
		if id, ok := tenantID.(string); ok {
			return id
		}
	}
	return ""
}

// TenantID propagates the gateway's tenant header into the request context
// so downstream middleware can apply per-tenant limits.
func TenantID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenantID := c.GetHeader(HeaderXTenantID); tenantID != "" {
			c.Set(TenantIDContextKey, tenantID)
		}
		c.Next()
	}
}
