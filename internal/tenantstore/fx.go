package tenantstore

import (
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("tenantstore",
	fx.Provide(provideTenantChecker),
	fx.Provide(NewFactory),
)

func provideTenantChecker(s tenantdomain.Service) TenantChecker {
	return s
}
