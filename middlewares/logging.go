package middlewares

import (
	"DentalClinic/database"
	"DentalClinic/metrics"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingMiddleware attaches a request-scoped logger to the context and logs
// every request once it completes.
func LoggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)

		ctx := c.Request.Context()
		fields := logger.With().Str("request_id", requestID)
		if tenant, err := database.TenantFromContext(ctx); err == nil {
			fields = fields.Str("tenant", tenant)
		}
		reqLogger := fields.Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(ctx))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		event := reqLogger.Info()
		if status >= 500 {
			event = reqLogger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("request handled")
	}
}
