package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vendora/refundcore/internal/audit"
	"github.com/vendora/refundcore/internal/authz"
	"github.com/vendora/refundcore/internal/clock"
	"github.com/vendora/refundcore/internal/config"
	"github.com/vendora/refundcore/internal/creditnote"
	"github.com/vendora/refundcore/internal/events"
	"github.com/vendora/refundcore/internal/gateway"
	"github.com/vendora/refundcore/internal/migration"
	"github.com/vendora/refundcore/internal/observability/logger"
	"github.com/vendora/refundcore/internal/observability/tracing"
	"github.com/vendora/refundcore/internal/reconciliation"
	"github.com/vendora/refundcore/internal/reconciliation/sweeper"
	"github.com/vendora/refundcore/internal/refund"
	"github.com/vendora/refundcore/internal/seed"
	"github.com/vendora/refundcore/internal/server"
	"github.com/vendora/refundcore/internal/sourcetxn"
	"github.com/vendora/refundcore/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		fx.Invoke(func(cfg config.Config, conn *gorm.DB) error {
			if !cfg.SeedDemoData || cfg.IsProduction() {
				return nil
			}
			return seed.EnsureDemoSources(conn)
		}),
		tracing.Module,
		events.Module,
		audit.Module,
		sourcetxn.Module,
		authz.Module,
		reconciliation.Module,
		creditnote.Module,
		gateway.Module,
		refund.Module,
		sweeper.Module,
		server.Module,
	)
	app.Run()
}
