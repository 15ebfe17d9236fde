package postgres

import (
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/authsvc/internal/auth/store/drivers/postgres/migrations"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations applies the embedded migrations. The migrate driver pins a
// connection and closes its database on exit, so it gets a dedicated handle
// instead of the store's pool.
func (s *Store) ApplyMigrations() error {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return err
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return err
	}

	migrationsFilesystem, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		_ = driver.Close()
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", migrationsFilesystem, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return err
	}
	defer instance.Close()

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
