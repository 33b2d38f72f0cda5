package migration

import (
	"github.com/smallbiznis/gapline/internal/config"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	pkgdb "github.com/smallbiznis/gapline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		return Apply(conn, cfg, log)
	}),
)

// Apply runs versioned migrations on postgres. Other dialects are schema-managed by
// gorm when auto-migration is enabled.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if pkgdb.IsPostgres(conn) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := RunMigrations(sqlDB)
		if err != nil {
			return err
		}
		log.Named("migrations").Info("schema up to date", zap.Uint("version", version))
		return nil
	}
	if !cfg.DBAutoMigrate {
		return nil
	}
	log.Named("migrations").Info("auto-migrating schema", zap.String("dialect", conn.Dialector.Name()))
	return AutoMigrate(conn)
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&tenantdomain.Tenant{}, &creditdomain.CreditLedger{}, &creditdomain.CreditTransaction{}); err != nil {
		return err
	}
	return tenantstore.AutoMigrate(conn)
}
