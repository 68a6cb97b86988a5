package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(CORS())
	r.GET("/resource", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Preflight request
	preflight := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/resource", nil)
	r.ServeHTTP(preflight, req)
	require.Equal(t, http.StatusNoContent, preflight.Code)
	require.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, preflight.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	// Actual request inherits headers and proceeds
	actual := httptest.NewRecorder()
	r.ServeHTTP(actual, httptest.NewRequest(http.MethodGet, "/resource", nil))
	require.Equal(t, http.StatusOK, actual.Code)
	require.Equal(t, "*", actual.Header().Get("Access-Control-Allow-Origin"))
}
