package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/config"
	"github.com/smallbiznis/gapline/internal/featurelimit/domain"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/plan/registry"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"github.com/smallbiznis/gapline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type knownTenants map[snowflake.ID]bool

func (k knownTenants) Exists(_ context.Context, id snowflake.ID) (bool, error) {
	return k[id], nil
}

func newService(t *testing.T, plans plandomain.Registry) (domain.Service, *tenantstore.Factory) {
	t.Helper()
	db := testutil.OpenDB(t)
	require.NoError(t, tenantstore.AutoMigrate(db))
	stores := tenantstore.NewFactory(tenantstore.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   testutil.Node(t),
		Tenants: knownTenants{1: true, 2: true, 3: true},
	})
	return New(Params{Log: zap.NewNop(), Plans: plans, Stores: stores}), stores
}

func TestFreeTenantPlaybookScenario(t *testing.T) {
	svc, stores := newService(t, registry.NewDefault())
	ctx := context.Background()

	result, err := svc.CheckFeatureLimit(ctx, 1, "free", "playbooks")
	require.NoError(t, err)
	assert.Equal(t, domain.LimitResult{
		Allowed:  true,
		Limit:    1,
		Current:  0,
		Feature:  plandomain.FeaturePlaybooks,
		PlanType: plandomain.TypeFree,
	}, result)

	require.NoError(t, stores.For(1).Playbooks().Create(ctx, &storedomain.Playbook{Name: "Expansion"}))

	result, err = svc.CheckFeatureLimit(ctx, 1, "free", "playbooks")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 1, result.Limit)
	assert.EqualValues(t, 1, result.Current)
}

func TestLimitBoundary(t *testing.T) {
	svc, stores := newService(t, registry.NewDefault())
	ctx := context.Background()
	store := stores.For(2)

	// starter caps segment profiles at 3
	for i := 0; i < 2; i++ {
		require.NoError(t, store.SegmentProfiles().Create(ctx, &storedomain.SegmentProfile{Name: "icp"}))
	}
	result, err := svc.CheckFeatureLimit(ctx, 2, "starter", "icps")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.EqualValues(t, 2, result.Current)

	require.NoError(t, store.SegmentProfiles().Create(ctx, &storedomain.SegmentProfile{Name: "icp"}))
	result, err = svc.CheckFeatureLimit(ctx, 2, "starter", "icps")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 3, result.Limit)
	assert.EqualValues(t, 3, result.Current)
}

func TestUnlimitedFeatureAlwaysAllowed(t *testing.T) {
	svc, stores := newService(t, registry.NewDefault())
	ctx := context.Background()
	store := stores.For(3)

	for i := 0; i < 12; i++ {
		require.NoError(t, store.Playbooks().Create(ctx, &storedomain.Playbook{Name: "pb"}))
	}
	result, err := svc.CheckFeatureLimit(ctx, 3, "professional", "playbooks")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Unlimited())
	assert.EqualValues(t, 12, result.Current)
}

func TestAccountsFeatureIsCounted(t *testing.T) {
	plans := registry.NewStatic(map[plandomain.Type]plandomain.Plan{
		plandomain.TypeStarter: {
			Type:            plandomain.TypeStarter,
			CreditAllowance: 500,
			Limits:          plandomain.Limits{plandomain.FeatureAccounts: 1},
		},
	})
	svc, stores := newService(t, plans)
	ctx := context.Background()

	require.NoError(t, stores.For(1).Accounts().Create(ctx, &storedomain.Account{Name: "Initech"}))
	result, err := svc.CheckFeatureLimit(ctx, 1, "starter", "accounts")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.EqualValues(t, 1, result.Current)
}

func TestCountsAreTenantScoped(t *testing.T) {
	svc, stores := newService(t, registry.NewDefault())
	ctx := context.Background()

	require.NoError(t, stores.For(2).Playbooks().Create(ctx, &storedomain.Playbook{Name: "other tenant"}))

	result, err := svc.CheckFeatureLimit(ctx, 1, "free", "playbooks")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Zero(t, result.Current)
}

func TestCheckErrors(t *testing.T) {
	svc, _ := newService(t, registry.NewDefault())
	ctx := context.Background()

	_, err := svc.CheckFeatureLimit(ctx, 1, "free", "widgets")
	assert.ErrorIs(t, err, plandomain.ErrInvalidFeature)

	_, err = svc.CheckFeatureLimit(ctx, 1, "platinum", "playbooks")
	assert.ErrorIs(t, err, plandomain.ErrUnknownPlan)
	assert.True(t, errors.Is(err, config.ErrConfiguration))

	_, err = svc.CheckFeatureLimit(ctx, 0, "free", "playbooks")
	assert.ErrorIs(t, err, storedomain.ErrInvalidTenantID)

	_, err = svc.CheckFeatureLimit(ctx, 404, "free", "playbooks")
	assert.ErrorIs(t, err, storedomain.ErrTenantNotFound)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}

func TestGetFeatureUsage(t *testing.T) {
	svc, stores := newService(t, registry.NewDefault())
	ctx := context.Background()
	store := stores.For(1)

	require.NoError(t, store.Playbooks().Create(ctx, &storedomain.Playbook{Name: "pb"}))
	require.NoError(t, store.Accounts().Create(ctx, &storedomain.Account{Name: "a"}))
	require.NoError(t, store.Accounts().Create(ctx, &storedomain.Account{Name: "b"}))

	usage, err := svc.GetFeatureUsage(ctx, 1, "free")
	require.NoError(t, err)
	assert.Equal(t, plandomain.TypeFree, usage.PlanType)
	require.Len(t, usage.Features, len(plandomain.FeatureKeys()))

	byKey := map[plandomain.FeatureKey]domain.LimitResult{}
	for _, f := range usage.Features {
		byKey[f.Feature] = f
	}
	assert.False(t, byKey[plandomain.FeaturePlaybooks].Allowed)
	assert.True(t, byKey[plandomain.FeatureICPs].Allowed)
	assert.EqualValues(t, 2, byKey[plandomain.FeatureAccounts].Current)
	assert.True(t, byKey[plandomain.FeatureAccounts].Unlimited())
}

func TestAllowed(t *testing.T) {
	assert.True(t, domain.Allowed(3, 2))
	assert.False(t, domain.Allowed(3, 3))
	assert.False(t, domain.Allowed(0, 0))
	assert.True(t, domain.Allowed(plandomain.Unlimited, 1_000_000))
}
