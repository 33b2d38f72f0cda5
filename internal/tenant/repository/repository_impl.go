package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID,
		tenant.Name,
		tenant.Slug,
		tenant.PlanType,
		tenant.SubscriptionStatus,
		tenant.BillingPeriodEnd,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	).Error
}

const tenantColumns = `id, name, slug, plan_type, subscription_status, billing_period_end, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	return findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Tenant, error) {
	return findOne(ctx, db, "slug = ?", slug)
}

// findOne returns nil without error when no tenant matches.
func findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Tenant, error) {
	var rows []domain.Tenant
	err := db.WithContext(ctx).
		Raw(`SELECT `+tenantColumns+` FROM tenants WHERE `+where+` LIMIT 1`, arg).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM tenants WHERE id = ?`, id).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tenants
		 SET plan_type = ?, subscription_status = ?, billing_period_end = ?, updated_at = ?
		 WHERE id = ?`,
		tenant.PlanType,
		tenant.SubscriptionStatus,
		tenant.BillingPeriodEnd,
		tenant.UpdatedAt,
		tenant.ID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
