//go:build integration

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/gapline/internal/clock"
	"github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/smallbiznis/gapline/internal/credit/repository"
	"github.com/smallbiznis/gapline/internal/migration"
	"github.com/smallbiznis/gapline/internal/plan/registry"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	"github.com/smallbiznis/gapline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gapline_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = migration.RunMigrations(sqlDB)
	require.NoError(t, err)
	return db
}

func TestConcurrentDeductionsAgainstPostgres(t *testing.T) {
	db := openPostgres(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.Exec(
		`INSERT INTO tenants (id, name, slug, plan_type, subscription_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		1, "Acme", "acme", "starter", "active", now, now,
	).Error)

	node := testutil.Node(t)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(now),
		Plans: starterWith(5),
		Stores: tenantstore.NewFactory(tenantstore.Params{
			DB:      db,
			Log:     zap.NewNop(),
			GenID:   node,
			Tenants: knownTenants{1: true},
		}),
		Repo: repository.Provide(),
	})

	_, err := svc.CheckCredits(ctx, 1, "starter", "generate_playbook")
	require.NoError(t, err)

	const callers = 8
	results := make([]domain.DeductResult, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.DeductCredits(ctx, 1, "starter", "generate_playbook", nil)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Success {
			successes++
		} else {
			assert.Contains(t, results[i].Error, "Insufficient credits")
		}
	}
	assert.Equal(t, 1, successes)

	ledger := ledgerRow(t, db, 1, "2025-03")
	assert.Equal(t, 5, ledger.CreditsUsed)
	assert.Equal(t, 0, ledger.CreditsRemaining)
	assert.EqualValues(t, 1, countTransactions(t, db, 1))
}
