package credit

import (
	"github.com/smallbiznis/gapline/internal/credit/repository"
	"github.com/smallbiznis/gapline/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
