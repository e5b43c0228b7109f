package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTenantID_PropagatesHeader(t *testing.T) {
	router := gin.New()
	router.Use(TenantID())
	router.GET("/test", func(c *gin.Context) {
		c.String(200, GetTenantID(c))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set(HeaderXTenantID, "tenant-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, "tenant-42", w.Body.String())
}

func TestTenantID_AbsentHeader(t *testing.T) {
	router := gin.New()
	router.Use(TenantID())
	router.GET("/test", func(c *gin.Context) {
		_, exists := c.Get(TenantIDContextKey)
		c.JSON(200, gin.H{"identified": exists})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), `"identified":false`)
}
