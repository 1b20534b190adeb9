// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/konsi/campaign-filter/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Run listing bounds.
const (
	DefaultRunLimit = 50
	MaxRunLimit     = 500
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// GetExclusionRules returns the saved rules of an agreement and campaign key.
// An unknown pair yields empty rules.
func (r *SQLRepository) GetExclusionRules(ctx context.Context, agreement, campaign string) (*domain.ExclusionRules, error) {
	if agreement == "" || campaign == "" {
		return nil, fmt.Errorf("%w: agreement and campaign are required", ErrInvalidInput)
	}

	query := `
		SELECT agreement, campaign, lotacoes, vinculos, secretarias, updated_at
		FROM exclusion_rules
		WHERE agreement = ? AND campaign = ?
	`

	rules, err := scanRules(r.db.QueryRowContext(ctx, r.rebind(query), agreement, campaign))
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ExclusionRules{Agreement: agreement, Campaign: campaign}, nil
	}
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveExclusionRules inserts or replaces the rules of an agreement and campaign key.
func (r *SQLRepository) SaveExclusionRules(ctx context.Context, rules *domain.ExclusionRules) error {
	if rules == nil || rules.Agreement == "" || rules.Campaign == "" {
		return fmt.Errorf("%w: agreement and campaign are required", ErrInvalidInput)
	}

	lotacoes, _ := json.Marshal(nonNil(rules.Lotacoes))
	vinculos, _ := json.Marshal(nonNil(rules.Vinculos))
	secretarias, _ := json.Marshal(nonNil(rules.Secretarias))

	if rules.UpdatedAt.IsZero() {
		rules.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO exclusion_rules (agreement, campaign, lotacoes, vinculos, secretarias, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (agreement, campaign) DO UPDATE SET
			lotacoes = excluded.lotacoes,
			vinculos = excluded.vinculos,
			secretarias = excluded.secretarias,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rules.Agreement, rules.Campaign,
		string(lotacoes), string(vinculos), string(secretarias),
		rules.UpdatedAt,
	)
	return err
}

// ListExclusionRules returns every saved campaign rule set of an agreement.
func (r *SQLRepository) ListExclusionRules(ctx context.Context, agreement string) ([]*domain.ExclusionRules, error) {
	if agreement == "" {
		return nil, fmt.Errorf("%w: agreement is required", ErrInvalidInput)
	}

	query := `
		SELECT agreement, campaign, lotacoes, vinculos, secretarias, updated_at
		FROM exclusion_rules
		WHERE agreement = ?
		ORDER BY campaign
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), agreement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExclusionRules
	for rows.Next() {
		rules, err := scanRules(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rules)
	}
	return out, rows.Err()
}

// SaveRun stores a run summary.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.CampaignRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO campaign_runs (
			id, agreement, campaign, team, input_rows, output_rows,
			convai_rows, status, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.Agreement, run.Campaign, run.Team,
		run.InputRows, run.OutputRows, run.ConvaiRows,
		run.Status, run.Error, run.DurationMs, run.CreatedAt,
	)
	return err
}

// GetRun retrieves a run summary by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.CampaignRun, error) {
	query := `
		SELECT id, agreement, campaign, team, input_rows, output_rows,
			   convai_rows, status, error, duration_ms, created_at
		FROM campaign_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.rebind(query), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. An empty agreement
// lists every agreement.
func (r *SQLRepository) ListRuns(ctx context.Context, agreement string, limit int) ([]*domain.CampaignRun, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	limit = min(limit, MaxRunLimit)

	var (
		where []string
		args  []any
	)
	if agreement != "" {
		where = append(where, "agreement = ?")
		args = append(args, agreement)
	}
	args = append(args, limit)

	query := `
		SELECT id, agreement, campaign, team, input_rows, output_rows,
			   convai_rows, status, error, duration_ms, created_at
		FROM campaign_runs
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.CampaignRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRules(row scanner) (*domain.ExclusionRules, error) {
	var rules domain.ExclusionRules
	var lotacoes, vinculos, secretarias string

	if err := row.Scan(
		&rules.Agreement, &rules.Campaign,
		&lotacoes, &vinculos, &secretarias,
		&rules.UpdatedAt,
	); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw  string
		dest *[]string
	}{
		{lotacoes, &rules.Lotacoes},
		{vinculos, &rules.Vinculos},
		{secretarias, &rules.Secretarias},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, fmt.Errorf("failed to parse exclusion rules for %s/%s: %w", rules.Agreement, rules.Campaign, err)
		}
	}
	return &rules, nil
}

func scanRun(row scanner) (*domain.CampaignRun, error) {
	var run domain.CampaignRun
	var runErr sql.NullString

	if err := row.Scan(
		&run.ID, &run.Agreement, &run.Campaign, &run.Team,
		&run.InputRows, &run.OutputRows, &run.ConvaiRows,
		&run.Status, &runErr, &run.DurationMs, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Error = runErr.String
	return &run, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
