package featurelimit

import (
	"github.com/smallbiznis/gapline/internal/featurelimit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("featurelimit.service",
	fx.Provide(service.New),
)
