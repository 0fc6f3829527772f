package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/credential"
	"github.com/smallbiznis/orderbridge/internal/deliveryjob"
	"github.com/smallbiznis/orderbridge/internal/dispatch"
	"github.com/smallbiznis/orderbridge/internal/eventledger"
	"github.com/smallbiznis/orderbridge/internal/ingestion"
	"github.com/smallbiznis/orderbridge/internal/matching"
	"github.com/smallbiznis/orderbridge/internal/migration"
	"github.com/smallbiznis/orderbridge/internal/observability"
	"github.com/smallbiznis/orderbridge/internal/partner"
	"github.com/smallbiznis/orderbridge/internal/providers"
	"github.com/smallbiznis/orderbridge/internal/ratelimit"
	"github.com/smallbiznis/orderbridge/internal/scheduler"
	"github.com/smallbiznis/orderbridge/internal/server"
	"github.com/smallbiznis/orderbridge/internal/settings"
	"github.com/smallbiznis/orderbridge/internal/statushook"
	"github.com/smallbiznis/orderbridge/pkg/db"
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
		ratelimit.Module,
		migration.Module,

		// Partner integration
		partner.Module,
		credential.Module,
		eventledger.Module,
		settings.Module,

		// Fulfillment
		deliveryjob.Module,
		matching.Module,
		dispatch.Module,
		providers.Module,
		statushook.Module,

		// Workers and HTTP surface
		ingestion.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
