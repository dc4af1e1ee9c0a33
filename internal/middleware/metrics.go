package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rutaescolar/planner-api/internal/service"
)

// Metrics times every request against the route template so workspace
// operations with path parameters share one series. The scrape endpoint
// itself is left out to keep the histogram honest.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
