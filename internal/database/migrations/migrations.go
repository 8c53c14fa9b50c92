package migrations

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"ms-pos/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"
)

//go:embed sql/*.sql
var embedded embed.FS

// MigrateOptions defines configuration options for migration
type MigrateOptions struct {
	// MigrationsDir overrides the embedded migrations with files on disk
	MigrationsDir string
}

// Runner handles Postgres schema migrations
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	log      *logger.Logger
	migrator *migrate.Migrate
}

// NewRunner creates a new migration runner
func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{bunDB: bunDB, options: opts, log: log}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	var migrator *migrate.Migrate
	if r.options.MigrationsDir != "" {
		if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
			return fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
		}
		migrator, err = migrate.NewWithDatabaseInstance("file://"+r.options.MigrationsDir, "postgres", driver)
	} else {
		source, srcErr := iofs.New(embedded, "sql")
		if srcErr != nil {
			return fmt.Errorf("failed to open embedded migrations: %w", srcErr)
		}
		migrator, err = migrate.NewWithInstance("iofs", source, "postgres", driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// MigrateUp runs all pending migrations, forcing a dirty version first
func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.log.Warn("MIGRATE", fmt.Sprintf("Detected dirty migration %d, forcing", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if v, _, err := r.migrator.Version(); err == nil {
		r.log.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("schema at version %d", v))
	}
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Version reports the applied version. ok is false before the first migration.
func (r *Runner) Version() (version uint, dirty bool, ok bool, err error) {
	if err := r.ensure(); err != nil {
		return 0, false, false, err
	}
	version, dirty, err = r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator != nil {
		sourceErr, databaseErr := r.migrator.Close()
		if sourceErr != nil {
			return fmt.Errorf("error closing migrator source: %w", sourceErr)
		}
		if databaseErr != nil {
			return fmt.Errorf("error closing migrator database: %w", databaseErr)
		}
	}
	return nil
}
