// Package context carries request-scoped observability fields.
package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type correlationIDKey struct{}
type tenantKey struct{}

type tenantFields struct {
	id       string
	planType string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithTenant records the tenant and its plan for log and span enrichment only;
// authorization decisions read the tenant from tenantcontext.
func WithTenant(ctx context.Context, tenantID, planType string) context.Context {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantKey{}, tenantFields{id: tenantID, planType: strings.TrimSpace(planType)})
}

func TenantIDFromContext(ctx context.Context) string {
	return tenantFrom(ctx).id
}

func PlanTypeFromContext(ctx context.Context) string {
	return tenantFrom(ctx).planType
}

func tenantFrom(ctx context.Context) tenantFields {
	if ctx == nil {
		return tenantFields{}
	}
	value, _ := ctx.Value(tenantKey{}).(tenantFields)
	return value
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(correlationIDKey{}).(string)
	return value
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := CorrelationIDFromContext(ctx)
	if cid == "" {
		cid = ulid.Make().String()
		ctx = context.WithValue(ctx, correlationIDKey{}, cid)
	}
	return ctx, cid
}
