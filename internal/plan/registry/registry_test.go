package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallbiznis/gapline/internal/config"
	"github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePlans(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "plans.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestStaticUnknownPlanIsConfigurationError(t *testing.T) {
	r := NewDefault()

	_, err := r.Plan(domain.Type("platinum"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownPlan))
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}

func TestStaticFreePlanCannotBeOverridden(t *testing.T) {
	r := NewStatic(map[domain.Type]domain.Plan{
		domain.TypeFree: {Type: domain.TypeFree, CreditAllowance: 9999, Limits: domain.Limits{domain.FeaturePlaybooks: 50}},
	})

	p, err := r.Plan(domain.TypeFree)
	require.NoError(t, err)
	assert.Equal(t, 100, p.CreditAllowance)
	assert.Equal(t, 1, p.Limits.Limit(domain.FeaturePlaybooks))
}

func TestStaticReturnsIndependentLimits(t *testing.T) {
	r := NewDefault()
	p, err := r.Plan(domain.TypeGrowth)
	require.NoError(t, err)
	p.Limits[domain.FeaturePlaybooks] = 0

	again, err := r.Plan(domain.TypeGrowth)
	require.NoError(t, err)
	assert.Equal(t, 25, again.Limits.Limit(domain.FeaturePlaybooks))
}

func TestFileRegistryOverlaysDefaults(t *testing.T) {
	path := writePlans(t, t.TempDir(), `
plans:
  free:
    name: Free Forever
    credits: 1000
  starter:
    name: Starter Plus
    credits: 750
    limits:
      playbooks: 8
`)

	r, err := NewFileRegistry(path, zap.NewNop())
	require.NoError(t, err)

	starter, err := r.Plan(domain.TypeStarter)
	require.NoError(t, err)
	assert.Equal(t, 750, starter.CreditAllowance)
	assert.Equal(t, 8, starter.Limits.Limit(domain.FeaturePlaybooks))
	assert.Equal(t, 3, starter.Limits.Limit(domain.FeatureICPs))

	free, err := r.Plan(domain.TypeFree)
	require.NoError(t, err)
	assert.Equal(t, 100, free.CreditAllowance)

	growth, err := r.Plan(domain.TypeGrowth)
	require.NoError(t, err)
	assert.Equal(t, 2000, growth.CreditAllowance)
}

func TestFileRegistryRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]string{
		"unknown plan":    "plans:\n  platinum:\n    name: P\n    credits: 1\n",
		"unknown feature": "plans:\n  growth:\n    name: G\n    credits: 1\n    limits:\n      widgets: 3\n",
		"negative limit":  "plans:\n  growth:\n    name: G\n    credits: 1\n    limits:\n      playbooks: -2\n",
		"missing name":    "plans:\n  growth:\n    credits: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writePlans(t, t.TempDir(), body)
			_, err := NewFileRegistry(path, zap.NewNop())
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrConfiguration))
		})
	}
}

func TestFileRegistryMissingExplicitPathFails(t *testing.T) {
	_, err := NewFileRegistry(filepath.Join(t.TempDir(), "absent.yml"), zap.NewNop())
	assert.Error(t, err)
}

func TestFileRegistryReloadsAndIgnoresInvalidChanges(t *testing.T) {
	dir := t.TempDir()
	path := writePlans(t, dir, "plans:\n  growth:\n    name: Growth\n    credits: 2000\n")

	r, err := NewFileRegistry(path, zap.NewNop())
	require.NoError(t, err)

	writePlans(t, dir, "plans:\n  growth:\n    name: Growth\n    credits: 3000\n")
	require.Eventually(t, func() bool {
		p, err := r.Plan(domain.TypeGrowth)
		return err == nil && p.CreditAllowance == 3000
	}, 5*time.Second, 20*time.Millisecond)

	writePlans(t, dir, "plans:\n  growth:\n    credits: 10\n")
	time.Sleep(300 * time.Millisecond)
	p, err := r.Plan(domain.TypeGrowth)
	require.NoError(t, err)
	assert.Equal(t, 3000, p.CreditAllowance)
}
