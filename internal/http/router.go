// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rsumon/internal/http/handlers"
	"rsumon/internal/http/middleware"
)

func NewRouter(status handlers.StatusSource, token string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(token))
	statusHandler := handlers.NewStatusHandler(status)
	api.GET("/status", statusHandler.Status)
	api.GET("/events", statusHandler.Events)
	api.GET("/metrics/latest", statusHandler.LatestMetric)

	return r
}
