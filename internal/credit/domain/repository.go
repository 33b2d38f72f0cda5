package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertLedgerIfAbsent reports false when the period's ledger already exists.
	InsertLedgerIfAbsent(ctx context.Context, db *gorm.DB, ledger *CreditLedger) (bool, error)
	FindLedger(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*CreditLedger, error)
	// SwapLedger writes next only while the row still holds prev's balances.
	SwapLedger(ctx context.Context, db *gorm.DB, prev, next CreditLedger, now time.Time) (bool, error)
	// Deduct decrements the balance only while it covers cost.
	Deduct(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string, cost int, now time.Time) (bool, error)
	AddUsed(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string, cost int, now time.Time) error
	InsertTransaction(ctx context.Context, db *gorm.DB, tx *CreditTransaction) error
	ListTransactions(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string, limit int) ([]CreditTransaction, error)
	TotalsByAction(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) ([]ActionTotal, error)
}
