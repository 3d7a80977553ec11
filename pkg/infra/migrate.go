package infra

import (
	"fmt"

	"github.com/cenkalti/backoff"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate brings the journal schema to the latest version. A dirty version
// is forced back one step and re-applied.
func Migrate(source, connStr string) error {
	mg, err := migrate.New(source, connStr)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return err
	}
	if dirty {
		if err := mg.Force(int(version) - 1); err != nil {
			return err
		}
	}

	if err := mg.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// MigrateWithBackoff retries until the database accepts the migration, for
// deployments where the schema job races the database container.
func MigrateWithBackoff(source, connStr string) error {
	return backoff.Retry(func() error {
		return Migrate(source, connStr)
	}, backoff.NewExponentialBackOff())
}
