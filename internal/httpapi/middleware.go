package httpapi

import (
	"strconv"
	"strings"
	"time"

	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	RequestIDHeader = "X-Request-Id"
	AdminUserHeader = "X-Admin-User"

	requestIDKey = "requestID"
)

// RequestID takes the caller's request id or makes one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger traces, logs and counts every request by route template.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := observability.StartSpan(c.Request.Context(), "http", c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", status))
		span.End()

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"route":      route,
			"path":       c.Request.URL.Path,
			"status":     status,
			"durationMs": elapsed.Milliseconds(),
			"requestId":  c.GetString(requestIDKey),
		}
		switch {
		case status >= 500:
			log.Warn("request failed", fields)
		case route == "/health" || route == "/metrics":
			log.Debug("request", fields)
		default:
			log.Info("request", fields)
		}
	}
}

// adminActor names the admin performing a review action.
func adminActor(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(AdminUserHeader))
}
