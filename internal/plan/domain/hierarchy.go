package domain

// growth and professional share a rank: neither satisfies a scale requirement
// and each satisfies the other's.
var ranks = map[Type]int{
	TypeFree:         0,
	TypeStarter:      1,
	TypeGrowth:       2,
	TypeProfessional: 2,
	TypeScale:        3,
	TypeEnterprise:   4,
}

// Rank returns -1 for unknown plans so they never satisfy a requirement.
func Rank(t Type) int {
	if r, ok := ranks[t]; ok {
		return r
	}
	return -1
}

type SubscriptionCheck struct {
	Allowed  bool
	PlanType Type
	Status   SubscriptionStatus
}

// EnsureActiveSubscription passes free tenants unconditionally; paid tenants need
// an active or trialing subscription.
func EnsureActiveSubscription(planType Type, status SubscriptionStatus) SubscriptionCheck {
	allowed := planType == TypeFree || status == StatusActive || status == StatusTrialing
	return SubscriptionCheck{Allowed: allowed, PlanType: planType, Status: status}
}

type PlanCheck struct {
	Allowed      bool
	CurrentPlan  Type
	RequiredPlan Type
}

func EnsurePlan(current, required Type) PlanCheck {
	return PlanCheck{
		Allowed:      Rank(current) >= 0 && Rank(current) >= Rank(required),
		CurrentPlan:  current,
		RequiredPlan: required,
	}
}
