package migration

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply migrates the schema for the configured driver and optionally seeds
// sample customers.
func Apply(conn *gorm.DB, cfg config.Config, genID *snowflake.Node, log *zap.Logger) error {
	log = log.Named("migrations")
	if !cfg.DBAutoMigrate {
		log.Info("auto migration disabled")
		return nil
	}

	switch driver := strings.ToLower(strings.TrimSpace(cfg.DBType)); driver {
	case "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if _, err := RunMigrations(sqlDB, log); err != nil {
			return err
		}
	case "sqlite":
		if err := ApplySQLite(conn); err != nil {
			return err
		}
	default:
		log.Warn("no embedded migrations for driver, schema must be managed externally", zap.String("driver", driver))
	}

	if cfg.SeedSampleData {
		return seed.EnsureSampleCustomers(conn, genID)
	}
	return nil
}
