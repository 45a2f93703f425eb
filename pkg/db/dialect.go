package db

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/netbill/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultSQLitePath = "netbill.db"

// Dialect picks the gorm dialector for DB_TYPE. Every driver is pinned to UTC
// so billing periods and due dates are compared in one zone.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.DBType)); driver {
	case "postgres", "postgresql":
		return postgres.Open(postgresDSN(cfg)), nil
	case "sqlite":
		return sqlite.Open(sqlitePath(cfg)), nil
	case "mysql":
		// Schema is managed outside the service for mysql.
		return mysql.Open(mysqlDSN(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func postgresDSN(cfg config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode)
}

func mysqlDSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// sqlitePath treats DB_NAME as a file path. The postgres default name is
// ignored so a bare DB_TYPE=sqlite works locally.
func sqlitePath(cfg config.Config) string {
	path := strings.TrimSpace(cfg.DBName)
	if path == "" || path == "postgres" {
		return defaultSQLitePath
	}
	return path
}
