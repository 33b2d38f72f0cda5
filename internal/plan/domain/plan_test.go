package domain

import (
	"errors"
	"testing"

	"github.com/smallbiznis/gapline/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDefaultFreeLimitsIsACopy(t *testing.T) {
	limits := DefaultFreeLimits()
	limits[FeaturePlaybooks] = 99

	assert.Equal(t, 1, DefaultFreeLimits()[FeaturePlaybooks])
	assert.Equal(t, Unlimited, DefaultFreeLimits()[FeatureAccounts])
}

func TestDefaultPlansTable(t *testing.T) {
	plans := DefaultPlans()
	assert.Len(t, plans, 6)
	assert.Equal(t, 100, plans[TypeFree].CreditAllowance)
	assert.Equal(t, 500, plans[TypeStarter].CreditAllowance)
	assert.Equal(t, 2000, plans[TypeGrowth].CreditAllowance)
	assert.True(t, plans[TypeProfessional].UnlimitedCredits())
	assert.Equal(t, 500, plans[TypeProfessional].Limits.Limit(FeatureEnrolledAccounts))
	assert.Equal(t, Unlimited, plans[TypeEnterprise].Limits.Limit(FeatureUsers))
}

func TestLimitsMissingFeatureIsUnlimited(t *testing.T) {
	assert.Equal(t, Unlimited, Limits{}.Limit(FeatureUsers))
}

func TestEnsurePlanHierarchy(t *testing.T) {
	cases := []struct {
		current, required Type
		allowed           bool
	}{
		{TypeFree, TypeFree, true},
		{TypeFree, TypeStarter, false},
		{TypeGrowth, TypeProfessional, true},
		{TypeProfessional, TypeGrowth, true},
		{TypeProfessional, TypeScale, false},
		{TypeEnterprise, TypeScale, true},
		{Type("legacy"), TypeFree, false},
	}
	for _, tc := range cases {
		got := EnsurePlan(tc.current, tc.required)
		assert.Equal(t, tc.allowed, got.Allowed, "%s >= %s", tc.current, tc.required)
	}
}

func TestEnsureActiveSubscription(t *testing.T) {
	assert.True(t, EnsureActiveSubscription(TypeFree, StatusCanceled).Allowed)
	assert.True(t, EnsureActiveSubscription(TypeGrowth, StatusActive).Allowed)
	assert.True(t, EnsureActiveSubscription(TypeStarter, StatusTrialing).Allowed)
	assert.False(t, EnsureActiveSubscription(TypeGrowth, StatusPastDue).Allowed)
	assert.False(t, EnsureActiveSubscription(TypeScale, StatusNone).Allowed)
}

func TestParseHelpers(t *testing.T) {
	p, ok := ParseType(" Growth ")
	assert.True(t, ok)
	assert.Equal(t, TypeGrowth, p)

	_, ok = ParseType("platinum")
	assert.False(t, ok)

	_, ok = ParseFeature("widgets")
	assert.False(t, ok)

	st, ok := ParseStatus("PAST_DUE")
	assert.True(t, ok)
	assert.Equal(t, StatusPastDue, st)
}

func TestUnknownPlanIsConfigurationError(t *testing.T) {
	assert.True(t, errors.Is(ErrUnknownPlan, config.ErrConfiguration))
}
