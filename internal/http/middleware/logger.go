package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"detailhub/internal/utils"
)

// Logger writes one access line per request including request_id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		utils.Logger().Log(c.Request.Context(), level, "[HTTP]",
			slog.String("request_id", GetRequestID(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Float64("latency_ms", float64(latency.Microseconds())/1000.0),
			slog.String("ip", c.ClientIP()),
		)
	}
}
