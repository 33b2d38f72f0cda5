package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestDeductIsOneConditionalUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	tenantID := snowflake.ID(42)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	pattern := `(?s)^UPDATE credit_ledgers\s+` +
		regexp.QuoteMeta(`SET credits_remaining = credits_remaining - $1, credits_used = credits_used + $2, updated_at = $3`) +
		`\s+` + regexp.QuoteMeta(`WHERE tenant_id = $4 AND billing_period = $5 AND credits_remaining >= $6`) + `$`
	mock.ExpectExec(pattern).
		WithArgs(5, 5, now, tenantID, "2025-03", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(pattern).
		WithArgs(5, 5, now, tenantID, "2025-03", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := Provide()
	ok, err := repo.Deduct(context.Background(), db, tenantID, "2025-03", 5, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Deduct(context.Background(), db, tenantID, "2025-03", 5, now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSwapLedgerGuardsOnPriorBalances(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	prev := domain.CreditLedger{ID: 7, TenantID: 42, TotalAllowance: 500, CreditsUsed: 20, CreditsRemaining: 480}
	next, direction := domain.Reconcile(prev, 2000)
	require.Equal(t, domain.ReconcileUpgrade, direction)

	mock.ExpectExec(`(?s)^UPDATE credit_ledgers.*WHERE tenant_id = \$4 AND id = \$5\s+AND total_allowance = \$6 AND credits_remaining = \$7 AND credits_used = \$8$`).
		WithArgs(2000, 1980, now, prev.TenantID, prev.ID, 500, 480, 20).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := Provide().SwapLedger(context.Background(), db, prev, next, now)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddUsedLeavesRemainingAlone(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)^UPDATE credit_ledgers\s+SET credits_used = credits_used \+ \$1, updated_at = \$2\s+WHERE tenant_id = \$3 AND billing_period = \$4$`).
		WithArgs(2, now, snowflake.ID(42), "2025-03").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, Provide().AddUsed(context.Background(), db, 42, "2025-03", 2, now))
	require.NoError(t, mock.ExpectationsWereMet())
}
