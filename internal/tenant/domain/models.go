package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
)

type Tenant struct {
	ID                 snowflake.ID                  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name               string                        `gorm:"not null" json:"name"`
	Slug               string                        `gorm:"not null;uniqueIndex" json:"slug"`
	PlanType           plandomain.Type               `gorm:"column:plan_type;not null;default:free" json:"plan_type"`
	SubscriptionStatus plandomain.SubscriptionStatus `gorm:"column:subscription_status;not null;default:none" json:"subscription_status"`
	BillingPeriodEnd   *time.Time                    `gorm:"column:billing_period_end" json:"billing_period_end,omitempty"`
	CreatedAt          time.Time                     `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time                     `gorm:"not null" json:"updated_at"`
}
