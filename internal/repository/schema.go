package repository

// Schema definitions for the campaign filter database.
// Compatible with both SQLite and PostgreSQL.

// schemaExclusionRules stores saved default exclusion lists per agreement
// and campaign. Lists are JSON arrays.
const schemaExclusionRules = `
CREATE TABLE IF NOT EXISTS exclusion_rules (
    agreement TEXT NOT NULL,
    campaign TEXT NOT NULL,
    lotacoes TEXT NOT NULL,
    vinculos TEXT NOT NULL,
    secretarias TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (agreement, campaign)
);
`

const schemaCampaignRuns = `
CREATE TABLE IF NOT EXISTS campaign_runs (
    id TEXT PRIMARY KEY,
    agreement TEXT NOT NULL,
    campaign TEXT NOT NULL,
    team TEXT NOT NULL,
    input_rows INTEGER NOT NULL,
    output_rows INTEGER NOT NULL,
    convai_rows INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_campaign_runs_agreement ON campaign_runs(agreement, created_at);
CREATE INDEX IF NOT EXISTS idx_campaign_runs_created ON campaign_runs(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaExclusionRules,
		schemaCampaignRuns,
	}
}
