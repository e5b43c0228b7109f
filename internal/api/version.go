package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAPIVersion carries the served API version on every response
	// and, on requests, the version the client asks for.
	HeaderAPIVersion = "X-API-Version"

	// DefaultAPIVersion is used when the client does not negotiate
	DefaultAPIVersion = "1.0"
)

// VersionMiddleware stamps responses with the API version and rejects
// requests that negotiate an unsupported one.
func VersionMiddleware(version string, supported []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, version)

		if requested := c.GetHeader(HeaderAPIVersion); requested != "" {
			if !isVersionSupported(requested, supported) {
				c.Abort()
				c.JSON(406, gin.H{
					"error":              "unsupported_api_version",
					"message":            "Requested API version is not supported",
					"supported_versions": supported,
				})
				return
			}
			c.Set("api_version", requested)
		} else {
			c.Set("api_version", version)
		}

		c.Next()
	}
}

// isVersionSupported accepts both "1" and "1.0" style versions
func isVersionSupported(version string, supported []string) bool {
	for _, v := range supported {
		if v == version || strings.HasPrefix(v, version+".") {
			return true
		}
	}
	return false
}

// GetVersion extracts the negotiated API version from the gin context
func GetVersion(c *gin.Context) string {
	if v, exists := c.Get("api_version"); exists {
		if version, ok := v.(string); ok {
			return version
		}
	}
	return DefaultAPIVersion
}

// StandardVersionMiddleware returns the middleware for the current v1 API
func StandardVersionMiddleware() gin.HandlerFunc {
	return VersionMiddleware("1.0", []string{"1.0", "1"})
}
