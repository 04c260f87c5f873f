package router

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

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("guard"))
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Register(pingRoutes{}).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "/api/v1/ping").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/ping").Code)
}

func TestRouter_WithAPIVersion(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithAPIVersion("v2")).Register(pingRoutes{}).Setup()

	assert.Equal(t, http.StatusOK, serve(engine, "/api/v2/ping").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, "/api/v1/ping").Code)
}

func TestRouter_WithMiddleware(t *testing.T) {
	engine := gin.New()
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("guard"))
	})
	mark := func(c *gin.Context) {
		c.Set("guard", "api")
		c.Next()
	}
	NewRouter(engine, WithMiddleware(mark)).Register(pingRoutes{}).Setup()

	assert.Equal(t, "api", serve(engine, "/api/v1/ping").Body.String())
	assert.Equal(t, "", serve(engine, "/healthz").Body.String())
}
