package plan

import (
	"github.com/smallbiznis/gapline/internal/plan/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.registry",
	fx.Provide(registry.Provide),
)
