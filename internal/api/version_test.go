package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func versionRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"version": GetVersion(c)})
	})
	return router
}

func TestVersionMiddleware_StampsResponse(t *testing.T) {
	router := versionRouter(VersionMiddleware("1.0", []string{"1.0", "1"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "1.0", w.Header().Get(HeaderAPIVersion))
}

func TestVersionMiddleware_SupportedNegotiation(t *testing.T) {
	router := versionRouter(StandardVersionMiddleware())

	for _, requested := range []string{"1", "1.0"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/test", nil)
		req.Header.Set(HeaderAPIVersion, requested)
		router.ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code, "version %s", requested)
		assert.Contains(t, w.Body.String(), requested)
	}
}

func TestVersionMiddleware_UnsupportedNegotiation(t *testing.T) {
	router := versionRouter(StandardVersionMiddleware())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set(HeaderAPIVersion, "3.0")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotAcceptable, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported_api_version")
}

func TestIsVersionSupported(t *testing.T) {
	supported := []string{"1.0", "1"}

	assert.True(t, isVersionSupported("1.0", supported))
	assert.True(t, isVersionSupported("1", supported))
	assert.False(t, isVersionSupported("2.0", supported))
	assert.False(t, isVersionSupported("", supported))
}

func TestGetVersion_Default(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, DefaultAPIVersion, GetVersion(c))
}
