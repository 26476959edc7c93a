// Package api exposes the aggregation gate over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the HTTP layer configuration.
type Config struct {
	// AdminUser and AdminPass gate the privileged endpoints via basic auth.
	AdminUser string
	AdminPass string
}

// NewServer creates a gin engine with all routes configured.
func NewServer(handler *Handler, cfg Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// CORS: the widget calls this API from tenant sites.
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/summary", handler.GetSummary)
	r.POST("/api/summary/purge", basicAuth(cfg.AdminUser, cfg.AdminPass), handler.PurgeSummary)

	return r
}

// basicAuth creates the privileged-caller check for admin operations.
func basicAuth(user, pass string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		if !ok || u != user || p != pass {
			c.Header("WWW-Authenticate", `Basic realm="Admin Area"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
