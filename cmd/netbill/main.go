package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/authorization"
	"github.com/smallbiznis/netbill/internal/bill"
	"github.com/smallbiznis/netbill/internal/billingaudit"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/customer"
	"github.com/smallbiznis/netbill/internal/migration"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/observability"
	"github.com/smallbiznis/netbill/internal/payment"
	"github.com/smallbiznis/netbill/internal/providers"
	"github.com/smallbiznis/netbill/internal/ratelimit"
	"github.com/smallbiznis/netbill/internal/scheduler"
	"github.com/smallbiznis/netbill/internal/server"
	"github.com/smallbiznis/netbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		customer.Module,
		billingaudit.Module,
		bill.Module,
		payment.Module,
		providers.Module,
		notification.Module,
		authorization.Module,
		ratelimit.Module,

		server.Module,
		scheduler.Module,
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
