package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gapline/pkg/repository"
	"gorm.io/datatypes"
)

type Account struct {
	repository.Model
	Name               string            `gorm:"not null" json:"name"`
	ExternalID         string            `gorm:"index" json:"external_id,omitempty"`
	Segment            string            `json:"segment,omitempty"`
	Region             string            `json:"region,omitempty"`
	Status             string            `gorm:"not null;default:active" json:"status"`
	TerritoryManagerID *snowflake.ID     `gorm:"index" json:"territory_manager_id,omitempty"`
	CategoryID         *snowflake.ID     `json:"category_id,omitempty"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// AccountMetric holds the computed gap analysis for one account.
type AccountMetric struct {
	repository.Model
	AccountID           snowflake.ID      `gorm:"not null;index" json:"account_id"`
	AnnualRevenue       decimal.Decimal   `gorm:"type:numeric(14,2);not null;default:0" json:"annual_revenue"`
	EstimatedPotential  decimal.Decimal   `gorm:"type:numeric(14,2);not null;default:0" json:"estimated_potential"`
	GapRevenue          decimal.Decimal   `gorm:"type:numeric(14,2);not null;default:0" json:"gap_revenue"`
	OpportunityScore    int               `gorm:"not null;default:0" json:"opportunity_score"`
	CategoryPenetration datatypes.JSONMap `gorm:"type:jsonb" json:"category_penetration,omitempty"`
	LastOrderAt         *time.Time        `json:"last_order_at,omitempty"`
}

func (m *AccountMetric) KeyFor(column string) snowflake.ID {
	if column == "account_id" {
		return m.AccountID
	}
	return m.ID
}

type Product struct {
	repository.Model
	SKU       string          `gorm:"column:sku;not null" json:"sku"`
	Name      string          `gorm:"not null" json:"name"`
	Category  string          `json:"category,omitempty"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_price"`
}

type Order struct {
	repository.Model
	AccountID snowflake.ID    `gorm:"not null;index" json:"account_id"`
	ProductID *snowflake.ID   `json:"product_id,omitempty"`
	OrderedAt time.Time       `gorm:"not null" json:"ordered_at"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	Total     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
}

type Task struct {
	repository.Model
	AccountID   *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	Title       string        `gorm:"not null" json:"title"`
	Description string        `json:"description,omitempty"`
	Status      string        `gorm:"not null;default:open;index" json:"status"`
	Priority    string        `gorm:"not null;default:medium" json:"priority"`
	Assignee    string        `json:"assignee,omitempty"`
	DueAt       *time.Time    `json:"due_at,omitempty"`
}

type Playbook struct {
	repository.Model
	Name        string            `gorm:"not null" json:"name"`
	Description string            `json:"description,omitempty"`
	Tags        pq.StringArray    `gorm:"type:text[]" json:"tags"`
	Steps       datatypes.JSONMap `gorm:"type:jsonb" json:"steps,omitempty"`
	AIGenerated bool              `gorm:"column:ai_generated;not null;default:false" json:"ai_generated"`
}

// SegmentProfile is an ideal customer profile; it backs the icps feature limit.
type SegmentProfile struct {
	repository.Model
	Name        string            `gorm:"not null" json:"name"`
	Description string            `json:"description,omitempty"`
	Criteria    datatypes.JSONMap `gorm:"type:jsonb" json:"criteria,omitempty"`
	IsPrimary   bool              `gorm:"not null;default:false" json:"is_primary"`
}

// ProgramAccount enrolls an account in the revenue-share program.
type ProgramAccount struct {
	repository.Model
	AccountID  snowflake.ID  `gorm:"not null;index" json:"account_id"`
	TierID     *snowflake.ID `json:"tier_id,omitempty"`
	Status     string        `gorm:"not null;default:active" json:"status"`
	EnrolledAt time.Time     `gorm:"not null" json:"enrolled_at"`
}

func (p *ProgramAccount) KeyFor(column string) snowflake.ID {
	if column == "account_id" {
		return p.AccountID
	}
	return p.ID
}

type Setting struct {
	repository.Model
	Key   string `gorm:"not null" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}

type ScoringWeights struct {
	repository.Model
	RevenueWeight     float64 `gorm:"not null" json:"revenue_weight"`
	GapWeight         float64 `gorm:"not null" json:"gap_weight"`
	PenetrationWeight float64 `gorm:"not null" json:"penetration_weight"`
	RecencyWeight     float64 `gorm:"not null" json:"recency_weight"`
}

func (ScoringWeights) TableName() string { return "scoring_weights" }

// DefaultScoringWeights applies until a tenant saves its own.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		RevenueWeight:     0.4,
		GapWeight:         0.3,
		PenetrationWeight: 0.2,
		RecencyWeight:     0.1,
	}
}

type TerritoryManager struct {
	repository.Model
	Name   string `gorm:"not null" json:"name"`
	Email  string `json:"email,omitempty"`
	Region string `json:"region,omitempty"`
}

type CustomCategory struct {
	repository.Model
	Name  string `gorm:"not null" json:"name"`
	Slug  string `gorm:"not null" json:"slug"`
	Color string `json:"color,omitempty"`
}

func (CustomCategory) TableName() string { return "custom_categories" }

type RevShareTier struct {
	repository.Model
	Name       string              `gorm:"not null" json:"name"`
	MinRevenue decimal.Decimal     `gorm:"type:numeric(14,2);not null;default:0" json:"min_revenue"`
	MaxRevenue decimal.NullDecimal `gorm:"type:numeric(14,2)" json:"max_revenue"`
	Rate       decimal.Decimal     `gorm:"type:numeric(6,4);not null" json:"rate"`
}

type DataUpload struct {
	repository.Model
	FileName    string     `gorm:"not null" json:"file_name"`
	Kind        string     `gorm:"not null" json:"kind"`
	Status      string     `gorm:"not null;default:pending" json:"status"`
	RowCount    int        `gorm:"not null;default:0" json:"row_count"`
	Error       string     `json:"error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TenantUser is a seat on the tenant; it backs the users feature limit.
type TenantUser struct {
	repository.Model
	Email string `gorm:"not null" json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `gorm:"not null;default:member" json:"role"`
}

// Models lists every tenant-scoped table for migration.
func Models() []any {
	return []any{
		&Account{},
		&AccountMetric{},
		&Product{},
		&Order{},
		&Task{},
		&Playbook{},
		&SegmentProfile{},
		&ProgramAccount{},
		&Setting{},
		&ScoringWeights{},
		&TerritoryManager{},
		&CustomCategory{},
		&RevShareTier{},
		&DataUpload{},
		&TenantUser{},
	}
}

// UniqueIndexes are the logical keys upserts and enrollment rely on.
var UniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_account_metrics_tenant_account ON account_metrics (tenant_id, account_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_program_accounts_tenant_account ON program_accounts (tenant_id, account_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_settings_tenant_key ON settings (tenant_id, key)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_scoring_weights_tenant ON scoring_weights (tenant_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_custom_categories_tenant_slug ON custom_categories (tenant_id, slug)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_tenant_users_tenant_email ON tenant_users (tenant_id, email)`,
}
