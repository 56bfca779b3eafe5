package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"script-backend/internal/shared/metrics"
	"script-backend/internal/shared/telemetry"
)

// quietRoutes are polled by infrastructure and only logged when they fail.
var quietRoutes = map[string]bool{
	"/metrics":       true,
	"/api/v1/health": true,
}

// Logging emits one structured line per request and records its latency.
// Server errors log at error level and client errors at warn.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		status := c.Writer.Status()
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, elapsed.Seconds())
		if quietRoutes[route] && status < http.StatusBadRequest {
			return
		}

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       route,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(elapsed.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			fields["analysis_id"] = id
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			telemetry.ErrorCtx(ctx, "request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.WarnCtx(ctx, "request.complete", fields)
		default:
			telemetry.InfoCtx(ctx, "request.complete", fields)
		}
	}
}
