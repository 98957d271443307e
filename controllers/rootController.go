package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rootHandler handles requests to the root path
func rootHandler(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to the clinic scheduling API!")
}

// SetupRootRoute registers the unauthenticated root and metrics routes.
func SetupRootRoute(router gin.IRoutes) {
	router.GET("/", rootHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
