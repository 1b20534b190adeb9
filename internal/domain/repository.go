// Package domain defines the core types and interfaces of the campaign filter.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Exclusion rule operations
	GetExclusionRules(ctx context.Context, agreement, campaign string) (*ExclusionRules, error)
	SaveExclusionRules(ctx context.Context, rules *ExclusionRules) error
	ListExclusionRules(ctx context.Context, agreement string) ([]*ExclusionRules, error)

	// Run history
	SaveRun(ctx context.Context, run *CampaignRun) error
	GetRun(ctx context.Context, runID string) (*CampaignRun, error)
	ListRuns(ctx context.Context, agreement string, limit int) ([]*CampaignRun, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// RulesFile optionally seeds exclusion rules from the legacy JSON layout.
	RulesFile string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
