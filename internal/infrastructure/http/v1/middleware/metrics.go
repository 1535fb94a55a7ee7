package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/infrastructure/metrics"
)

// Metrics records request count, latency and in-flight requests. Paths
// are the route templates, so ids do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
