package repository

import (
	"cmp"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/konsi/campaign-filter/internal/domain"
)

// postgresDSN builds a key/value connection string, filling defaults for
// host, port, database and SSL mode.
func postgresDSN(cfg domain.RepositoryConfig) string {
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=campaign-filter",
		cmp.Or(cfg.PostgresHost, "localhost"),
		port,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cmp.Or(cfg.PostgresDB, "campaign_filter"),
		cmp.Or(cfg.PostgresSSLMode, "disable"),
	)
}

// openPostgres opens a PostgreSQL database connection.
func openPostgres(cfg domain.RepositoryConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	return db, nil
}
