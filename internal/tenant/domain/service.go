package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateTenantRequest struct {
	Name     string
	PlanType string
}

// UpdateSubscriptionRequest mirrors a billing provider webhook. Empty fields keep
// their stored values.
type UpdateSubscriptionRequest struct {
	TenantID         snowflake.ID
	PlanType         string
	Status           string
	BillingPeriodEnd *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (Tenant, error)
	Get(ctx context.Context, id snowflake.ID) (Tenant, error)
	Exists(ctx context.Context, id snowflake.ID) (bool, error)
	UpdateSubscription(ctx context.Context, req UpdateSubscriptionRequest) (Tenant, error)
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidPlan   = errors.New("invalid_plan")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
	ErrSlugTaken     = errors.New("slug_taken")
)
