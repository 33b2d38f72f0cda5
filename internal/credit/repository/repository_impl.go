package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/credit/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertLedgerIfAbsent(ctx context.Context, db *gorm.DB, ledger *domain.CreditLedger) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "billing_period"}},
			DoNothing: true,
		}).
		Create(ledger)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindLedger(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*domain.CreditLedger, error) {
	var ledger domain.CreditLedger
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, billing_period, total_allowance, credits_used, credits_remaining, created_at, updated_at
		 FROM credit_ledgers
		 WHERE tenant_id = ? AND billing_period = ?`,
		tenantID, period,
	).Scan(&ledger).Error
	if err != nil {
		return nil, err
	}
	if ledger.ID == 0 {
		return nil, nil
	}
	return &ledger, nil
}

func (r *repo) SwapLedger(ctx context.Context, db *gorm.DB, prev, next domain.CreditLedger, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_ledgers
		 SET total_allowance = ?, credits_remaining = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?
		   AND total_allowance = ? AND credits_remaining = ? AND credits_used = ?`,
		next.TotalAllowance, next.CreditsRemaining, now,
		prev.TenantID, prev.ID,
		prev.TotalAllowance, prev.CreditsRemaining, prev.CreditsUsed,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Deduct(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string, cost int, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_ledgers
		 SET credits_remaining = credits_remaining - ?, credits_used = credits_used + ?, updated_at = ?
		 WHERE tenant_id = ? AND billing_period = ? AND credits_remaining >= ?`,
		cost, cost, now,
		tenantID, period, cost,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) AddUsed(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string, cost int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE credit_ledgers
		 SET credits_used = credits_used + ?, updated_at = ?
		 WHERE tenant_id = ? AND billing_period = ?`,
		cost, now,
		tenantID, period,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.CreditTransaction) error {
	return db.WithContext(ctx).Create(tx).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string, limit int) ([]domain.CreditTransaction, error) {
	var items []domain.CreditTransaction
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND billing_period = ?", tenantID, period).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) TotalsByAction(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) ([]domain.ActionTotal, error) {
	var rows []domain.ActionTotal
	err := db.WithContext(ctx).Raw(
		`SELECT action_type, COUNT(*) AS count, COALESCE(SUM(credits_charged), 0) AS credits
		 FROM credit_transactions
		 WHERE tenant_id = ? AND billing_period = ?
		 GROUP BY action_type
		 ORDER BY action_type`,
		tenantID, period,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
