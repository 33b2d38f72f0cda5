package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
)

// LimitResult carries enough to render "N of M used" without another query.
type LimitResult struct {
	Allowed  bool                  `json:"allowed"`
	Limit    int                   `json:"limit"`
	Current  int64                 `json:"current"`
	Feature  plandomain.FeatureKey `json:"feature"`
	PlanType plandomain.Type       `json:"planType"`
}

// Unlimited reports whether the plan caps this feature at all.
func (r LimitResult) Unlimited() bool {
	return r.Limit == plandomain.Unlimited
}

type FeatureUsage struct {
	PlanType plandomain.Type `json:"planType"`
	Features []LimitResult   `json:"features"`
}

type Service interface {
	CheckFeatureLimit(ctx context.Context, tenantID snowflake.ID, planType string, feature string) (LimitResult, error)
	GetFeatureUsage(ctx context.Context, tenantID snowflake.ID, planType string) (FeatureUsage, error)
}

// Allowed is the cap decision: a cap bounds existing rows, so reaching it blocks the next one.
func Allowed(limit int, current int64) bool {
	return limit == plandomain.Unlimited || current < int64(limit)
}
