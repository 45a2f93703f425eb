package db

import (
	"testing"

	"github.com/smallbiznis/netbill/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDialectSelectsDriver(t *testing.T) {
	for _, driver := range []string{"postgres", "POSTGRESQL", "sqlite", "mysql"} {
		d, err := Dialect(config.Config{DBType: driver, DBName: "netbill"})
		require.NoError(t, err, driver)
		require.NotNil(t, d, driver)
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "netbill", DBPassword: "secret", DBName: "ledger",
	})
	require.Equal(t, "host=db port=5432 user=netbill password=secret dbname=ledger sslmode=disable TimeZone=UTC", dsn)
}

func TestSQLitePath(t *testing.T) {
	require.Equal(t, defaultSQLitePath, sqlitePath(config.Config{DBName: "postgres"}))
	require.Equal(t, defaultSQLitePath, sqlitePath(config.Config{}))
	require.Equal(t, "/tmp/ledger.db", sqlitePath(config.Config{DBName: "/tmp/ledger.db"}))
}
