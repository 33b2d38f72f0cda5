package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CheckCredits(ctx context.Context, tenantID snowflake.ID, planType string, action string) (CheckResult, error)
	DeductCredits(ctx context.Context, tenantID snowflake.ID, planType string, action string, meta *Metadata) (DeductResult, error)
	GetCreditUsage(ctx context.Context, tenantID snowflake.ID, planType string) (Usage, error)
}
