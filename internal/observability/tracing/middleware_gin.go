package tracing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/gapline/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request. Tenant and plan attributes are added
// after the handlers run because the tenant is resolved further down the chain.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("gapline/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + c.Request.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		reqCtx := c.Request.Context()
		if tenantID := obscontext.TenantIDFromContext(reqCtx); tenantID != "" {
			attrs = append(attrs,
				attribute.String("tenant_id", tenantID),
				attribute.String("plan_type", obscontext.PlanTypeFromContext(reqCtx)),
			)
		}
		if action := c.GetString("ai_action"); action != "" {
			attrs = append(attrs, attribute.String("ai.action", action))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
		}
		span.SetStatus(codes.Error, "request error")
	}
}
