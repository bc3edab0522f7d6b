package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterPublicEndpoints(router *gin.Engine, metricsHandler http.Handler) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metricsHandler))
}
