package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects to the configured database and wires tracing, metrics and
// pool settings.
func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	dbCfg := ConfigFrom(cfg)
	gormLogger := logger.NewGormLogger(logger.GormLoggerConfig{
		Level:                logger.DefaultGormLoggerConfig().Level,
		SlowThreshold:        dbCfg.SlowThreshold,
		IgnoreRecordNotFound: true,
	})

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBType, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("register gorm prometheus: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dbCfg.ConnMaxIdleTime)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	return conn, nil
}
