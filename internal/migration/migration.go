package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrDirtySchema means a previous migration failed halfway; an operator must fix the
// schema and force the version before the service can start.
var ErrDirtySchema = errors.New("migration_dirty_schema")

// RunMigrations brings the postgres schema (tables, logical-key indexes, row level
// security policies) up to the newest embedded version and returns it. The shared
// *sql.DB stays open.
func RunMigrations(db *sql.DB) (uint, error) {
	if db == nil {
		return 0, errors.New("migration database handle is required")
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return 0, err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("%w: version %d", ErrDirtySchema, version)
	}
	return version, nil
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
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "gapline_schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, "postgres", driver)
}
