package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/actionable-app/actionable/pkg/metrics"
)

// Metrics observes per-route request latency. Unmatched routes are labelled
// with the raw path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
