package domain

// Registry resolves plan definitions. Unknown plans return ErrUnknownPlan.
type Registry interface {
	Plan(planType Type) (Plan, error)
}
