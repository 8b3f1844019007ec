package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/careflow-api/pkg/metrics"
)

// Logger logs every request and records the HTTP metrics. Routes are
// labelled by their template, not the raw path, to keep metric
// cardinality bounded.
func Logger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if m != nil {
			statusLabel := strconv.Itoa(status)
			m.RequestDuration.WithLabelValues(c.Request.Method, route, statusLabel).Observe(latency.Seconds())
			m.RequestTotal.WithLabelValues(c.Request.Method, route, statusLabel).Inc()
		}

		logEvent := log.Info()
		if status >= 500 {
			logEvent = log.Error()
		}
		logEvent.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(ContextRequestID)).
			Msg("request")
	}
}
