package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/clock"
	"github.com/smallbiznis/gapline/internal/config"
	"github.com/smallbiznis/gapline/internal/credit"
	"github.com/smallbiznis/gapline/internal/featurelimit"
	"github.com/smallbiznis/gapline/internal/migration"
	"github.com/smallbiznis/gapline/internal/observability"
	"github.com/smallbiznis/gapline/internal/plan"
	"github.com/smallbiznis/gapline/internal/providers"
	"github.com/smallbiznis/gapline/internal/ratelimit"
	"github.com/smallbiznis/gapline/internal/seed"
	"github.com/smallbiznis/gapline/internal/server"
	"github.com/smallbiznis/gapline/internal/tenant"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	"github.com/smallbiznis/gapline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Tenancy and metering
		plan.Module,
		tenant.Module,
		tenantstore.Module,
		featurelimit.Module,
		credit.Module,
		ratelimit.Module,
		providers.Module,
		seed.Module,

		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the id generator shared by every repository.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
