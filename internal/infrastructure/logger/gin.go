package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// quietPaths are logged at debug when they succeed
var quietPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// GinMiddleware logs each HTTP request and attaches a request-scoped logger
// to the request context for services to pick up with L.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		ctx := WithRequestID(c.Request.Context(), logger, c.GetString("request_id"))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if route := c.FullPath(); route != "" && route != path {
			fields = append(fields, zap.String("route", route))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		reqLogger := FromContext(ctx).With(
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("HTTP request", fields...)
		case quietPaths[path]:
			reqLogger.Debug("HTTP request", fields...)
		default:
			reqLogger.Info("HTTP request", fields...)
		}
	}
}

// Recovery turns a panic into a logged 500 in the API error envelope
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString("request_id")
			logger.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success":    false,
				"request_id": requestID,
				"error": gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "An unexpected error occurred",
				},
			})
		}()
		c.Next()
	}
}
