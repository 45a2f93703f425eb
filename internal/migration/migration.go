package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

const versionTable = "netbill_schema_migrations"

// ErrDirtySchema means a previous migration failed halfway and needs a
// manual `migrate force` before the service can start.
var ErrDirtySchema = errors.New("schema migration is dirty")

// RunMigrations brings the postgres schema up to the embedded head and
// returns the resulting version.
func RunMigrations(db *sql.DB, log *zap.Logger) (uint, error) {
	if db == nil {
		return 0, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return 0, err
	}
	// migrator.Close would close the shared *sql.DB.

	before, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return before, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("apply migrations: %w", err)
	}

	after, _, err := migrator.Version()
	if err != nil {
		return before, fmt.Errorf("read schema version: %w", err)
	}
	if after != before {
		log.Info("schema migrated", zap.Uint("from", before), zap.Uint("to", after))
	} else {
		log.Debug("schema up to date", zap.Uint("version", after))
	}
	return after, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: versionTable})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return migrator, nil
}
