package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsi/campaign-filter/internal/domain"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(env(nil))
	require.NoError(t, err)

	assert.Equal(t, domain.TierCommunity, cfg.Tier)
	assert.Equal(t, "sqlite", cfg.Repository.Driver)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "channel", cfg.EventBus.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigProOverrides(t *testing.T) {
	cfg, err := loadConfig(env(map[string]string{
		"FILTER_TIER":          "pro",
		"FILTER_PORT":          "9090",
		"POSTGRES_HOST":        "db.internal",
		"POSTGRES_PORT":        "6432",
		"REDIS_ADDR":           "cache:6379",
		"NATS_URL":             "nats://bus:4222",
		"FILTER_RULES_FILE":    "/etc/filter/rules.json",
		"FILTER_MAX_UPLOAD_MB": "64",
		"FILTER_RULES_TTL":     "30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, domain.TierPro, cfg.Tier)
	assert.Equal(t, "postgres", cfg.Repository.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Repository.PostgresHost)
	assert.Equal(t, 6432, cfg.Repository.PostgresPort)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.True(t, cfg.Cache.EnableTwoPhase)
	assert.Equal(t, "nats://bus:4222", cfg.EventBus.NATSUrl)
	assert.Equal(t, "/etc/filter/rules.json", cfg.Repository.RulesFile)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.Cache.RulesTTL)
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	for _, vars := range []map[string]string{
		{"FILTER_PORT": "http"},
		{"FILTER_MAX_UPLOAD_MB": "0"},
		{"FILTER_RULES_TTL": "soon"},
	} {
		_, err := loadConfig(env(vars))
		assert.Error(t, err, "%v", vars)
	}
}
