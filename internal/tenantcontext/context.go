// Package tenantcontext carries the resolved tenant through a request.
package tenantcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
)

// Tenant is the subset of the tenant record guards need.
type Tenant struct {
	ID                 snowflake.ID
	PlanType           plandomain.Type
	SubscriptionStatus plandomain.SubscriptionStatus
}

type tenantKey struct{}

func WithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// FromContext returns the tenant and whether one with a valid id was set.
func FromContext(ctx context.Context) (Tenant, bool) {
	if ctx == nil {
		return Tenant{}, false
	}
	tenant, ok := ctx.Value(tenantKey{}).(Tenant)
	if !ok || tenant.ID <= 0 {
		return Tenant{}, false
	}
	return tenant, true
}

func TenantIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	tenant, ok := FromContext(ctx)
	return tenant.ID, ok
}
