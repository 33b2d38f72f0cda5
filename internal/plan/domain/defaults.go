package domain

// DefaultFreeLimits returns a fresh copy of the free plan caps.
func DefaultFreeLimits() Limits {
	return Limits{
		FeaturePlaybooks:        1,
		FeatureICPs:             1,
		FeatureEnrolledAccounts: 1,
		FeatureAccounts:         Unlimited,
		FeatureUsers:            1,
	}
}

const FreeCreditAllowance = 100

// FreePlan is fixed in code and cannot be overridden by a plans file.
func FreePlan() Plan {
	return Plan{
		Type:            TypeFree,
		Name:            "Free",
		CreditAllowance: FreeCreditAllowance,
		Limits:          DefaultFreeLimits(),
	}
}

// DefaultPlans returns the built-in plan table keyed by type.
func DefaultPlans() map[Type]Plan {
	return map[Type]Plan{
		TypeFree: FreePlan(),
		TypeStarter: {
			Type:            TypeStarter,
			Name:            "Starter",
			CreditAllowance: 500,
			Limits: Limits{
				FeaturePlaybooks:        5,
				FeatureICPs:             3,
				FeatureEnrolledAccounts: 25,
				FeatureAccounts:         Unlimited,
				FeatureUsers:            3,
			},
		},
		TypeGrowth: {
			Type:            TypeGrowth,
			Name:            "Growth",
			CreditAllowance: 2000,
			Limits: Limits{
				FeaturePlaybooks:        25,
				FeatureICPs:             10,
				FeatureEnrolledAccounts: 100,
				FeatureAccounts:         Unlimited,
				FeatureUsers:            10,
			},
		},
		TypeProfessional: {
			Type:            TypeProfessional,
			Name:            "Professional",
			CreditAllowance: Unlimited,
			Limits: Limits{
				FeaturePlaybooks:        Unlimited,
				FeatureICPs:             Unlimited,
				FeatureEnrolledAccounts: 500,
				FeatureAccounts:         Unlimited,
				FeatureUsers:            25,
			},
		},
		TypeScale: {
			Type:            TypeScale,
			Name:            "Scale",
			CreditAllowance: Unlimited,
			Limits: Limits{
				FeaturePlaybooks:        Unlimited,
				FeatureICPs:             Unlimited,
				FeatureEnrolledAccounts: Unlimited,
				FeatureAccounts:         Unlimited,
				FeatureUsers:            100,
			},
		},
		TypeEnterprise: {
			Type:            TypeEnterprise,
			Name:            "Enterprise",
			CreditAllowance: Unlimited,
			Limits: Limits{
				FeaturePlaybooks:        Unlimited,
				FeatureICPs:             Unlimited,
				FeatureEnrolledAccounts: Unlimited,
				FeatureAccounts:         Unlimited,
				FeatureUsers:            Unlimited,
			},
		},
	}
}
