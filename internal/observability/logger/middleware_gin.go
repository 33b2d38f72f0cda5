package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/gapline/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to the (type, code) pair sent to the client.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns request and correlation ids, then writes one access log line
// per request. Guard rejections (402, 403, 429) log at warn so plan pressure is visible
// without paging anyone.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx, _ = obscontext.EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if action := c.GetString("ai_action"); action != "" {
			fields = append(fields, zap.String("ai_action", action))
		}
		if lastErr := c.Errors.Last(); lastErr != nil && cfg.ErrorClassifier != nil {
			errorType, errorCode := cfg.ErrorClassifier(lastErr.Err)
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.NamedError("error", lastErr.Err))
			}
		}

		if ce := FromContext(c.Request.Context()).Check(accessLevel(route, status), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(requestIDHeader, requestID)
	return requestID
}

func accessLevel(route string, status int) zapcore.Level {
	switch {
	case route == "/metrics" || route == "/health":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusPaymentRequired,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
