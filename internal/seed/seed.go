package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/gapline/internal/config"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(run),
)

type Params struct {
	fx.In

	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Tenants tenantdomain.Service
	Repo    tenantdomain.Repository
}

func run(lc fx.Lifecycle, p Params) {
	name := strings.TrimSpace(p.Cfg.SeedTenantName)
	if name == "" {
		return
	}
	log := p.Log.Named("seed")
	if p.Cfg.IsProduction() {
		log.Warn("SEED_TENANT_NAME ignored in production")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			tenant, created, err := EnsureTenant(ctx, p.DB, p.Repo, p.Tenants, name, p.Cfg.SeedTenantPlan)
			if err != nil {
				return err
			}
			log.Info("seed tenant ready",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("slug", tenant.Slug),
				zap.String("plan_type", string(tenant.PlanType)),
				zap.Bool("created", created),
			)
			return nil
		},
	})
}

// EnsureTenant returns the tenant whose slug matches name, creating it on first run.
func EnsureTenant(ctx context.Context, db *gorm.DB, repo tenantdomain.Repository, tenants tenantdomain.Service, name, planType string) (tenantdomain.Tenant, bool, error) {
	if db == nil {
		return tenantdomain.Tenant{}, false, errors.New("seed database handle is required")
	}

	existing, err := repo.FindBySlug(ctx, db, slug.Make(name))
	if err != nil {
		return tenantdomain.Tenant{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	tenant, err := tenants.Create(ctx, tenantdomain.CreateTenantRequest{Name: name, PlanType: planType})
	if err != nil {
		return tenantdomain.Tenant{}, false, err
	}
	return tenant, true, nil
}
