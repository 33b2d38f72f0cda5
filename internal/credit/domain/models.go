package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CreditLedger is one tenant's AI credit balance for one billing period.
// TotalAllowance is -1 for unlimited plans.
type CreditLedger struct {
	ID               snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;uniqueIndex:ux_credit_ledgers_tenant_period,priority:1" json:"tenant_id"`
	BillingPeriod    string       `gorm:"type:varchar(7);not null;uniqueIndex:ux_credit_ledgers_tenant_period,priority:2" json:"billing_period"`
	TotalAllowance   int          `gorm:"not null" json:"total_allowance"`
	CreditsUsed      int          `gorm:"not null;default:0" json:"credits_used"`
	CreditsRemaining int          `gorm:"not null" json:"credits_remaining"`
	CreatedAt        time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updated_at"`
}

func (CreditLedger) TableName() string { return "credit_ledgers" }

func (l CreditLedger) Unlimited() bool {
	return l.TotalAllowance < 0
}

// CreditTransaction records one metered AI action. Rows are never updated.
type CreditTransaction struct {
	ID             snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TenantID       snowflake.ID      `gorm:"not null;index:idx_credit_transactions_tenant_period,priority:1" json:"tenant_id"`
	ActionType     ActionType        `gorm:"type:varchar(64);not null" json:"action_type"`
	CreditsCharged int               `gorm:"not null" json:"credits_charged"`
	BillingPeriod  string            `gorm:"type:varchar(7);not null;index:idx_credit_transactions_tenant_period,priority:2" json:"billing_period"`
	AccountID      *snowflake.ID     `json:"account_id,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

// Metadata is optional context attached to a deduction.
type Metadata struct {
	AccountID   *snowflake.ID
	Description string
	Attributes  map[string]any
}

type CheckResult struct {
	Allowed          bool       `json:"allowed"`
	Unlimited        bool       `json:"unlimited"`
	CreditsRemaining int        `json:"creditsRemaining"`
	CreditsRequired  int        `json:"creditsRequired"`
	TotalAllowance   int        `json:"totalAllowance"`
	BillingPeriod    string     `json:"billingPeriod"`
	Action           ActionType `json:"action"`
}

type DeductResult struct {
	Success          bool   `json:"success"`
	CreditsRemaining int    `json:"creditsRemaining"`
	CreditsCharged   int    `json:"creditsCharged"`
	Error            string `json:"error,omitempty"`
}

type ActionUsage struct {
	Label       string `json:"label"`
	Count       int64  `json:"count"`
	CreditsUsed int64  `json:"creditsUsed"`
}

// ActionTotal is one row of the per-action aggregation over a period.
type ActionTotal struct {
	ActionType ActionType
	Count      int64
	Credits    int64
}

type Usage struct {
	BillingPeriod      string                     `json:"billingPeriod"`
	TotalAllowance     int                        `json:"totalAllowance"`
	CreditsUsed        int                        `json:"creditsUsed"`
	CreditsRemaining   int                        `json:"creditsRemaining"`
	Unlimited          bool                       `json:"unlimited"`
	PercentUsed        int                        `json:"percentUsed"`
	ActionBreakdown    map[ActionType]ActionUsage `json:"actionBreakdown"`
	RecentTransactions []CreditTransaction        `json:"recentTransactions"`
	ActionCosts        []ActionCost               `json:"actionCosts"`
}
