package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/famtime/rewards-api/internal/service"
)

// Metrics records duration and count for every request. Matched routes
// are labelled by their template; requests that never matched keep
// their raw path so probes and 404 scans stay visible.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
