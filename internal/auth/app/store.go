package app

import (
	"fmt"

	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/authsvc/internal/auth/store/drivers/sqlite"
)

// OpenStore opens the configured driver and applies its migrations.
func OpenStore(cfg Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.DatabaseDriver {
	case DriverPostgres:
		st, err = postgres.NewStore(cfg.DatabaseURL)
	case DriverSQLite, "":
		st, err = sqlite.NewStore(sqliteDSN(cfg.DatabaseFile))
	default:
		return nil, &ConfigError{Field: "database_driver", Reason: fmt.Sprintf("%q is not supported", cfg.DatabaseDriver)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.DatabaseDriver, err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	return st, nil
}

func sqliteDSN(file string) string {
	if file == ":memory:" {
		return file
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", file)
}
