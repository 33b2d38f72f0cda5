package registry

import (
	"fmt"

	"github.com/smallbiznis/gapline/internal/plan/domain"
)

// Static serves a fixed plan table.
type Static struct {
	plans map[domain.Type]domain.Plan
}

// NewStatic copies plans; the free plan is always the built-in definition.
func NewStatic(plans map[domain.Type]domain.Plan) *Static {
	copied := make(map[domain.Type]domain.Plan, len(plans)+1)
	for k, p := range plans {
		p.Limits = p.Limits.Clone()
		copied[k] = p
	}
	copied[domain.TypeFree] = domain.FreePlan()
	return &Static{plans: copied}
}

func NewDefault() *Static {
	return NewStatic(domain.DefaultPlans())
}

func (s *Static) Plan(planType domain.Type) (domain.Plan, error) {
	return lookup(s.plans, planType)
}

func lookup(plans map[domain.Type]domain.Plan, planType domain.Type) (domain.Plan, error) {
	if planType == domain.TypeFree {
		return domain.FreePlan(), nil
	}
	p, ok := plans[planType]
	if !ok {
		return domain.Plan{}, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, planType)
	}
	p.Limits = p.Limits.Clone()
	return p, nil
}
