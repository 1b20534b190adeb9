package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/konsi/campaign-filter/internal/domain"
)

// loadConfig builds the service configuration: FILTER_TIER selects the
// base profile, then individual variables override it.
func loadConfig(getenv func(string) string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if getenv("FILTER_TIER") == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	setString(&cfg.Server.Host, getenv("FILTER_HOST"))
	setString(&cfg.Repository.SQLitePath, getenv("FILTER_SQLITE_PATH"))
	setString(&cfg.Repository.RulesFile, getenv("FILTER_RULES_FILE"))
	setString(&cfg.Repository.PostgresHost, getenv("POSTGRES_HOST"))
	setString(&cfg.Repository.PostgresUser, getenv("POSTGRES_USER"))
	setString(&cfg.Repository.PostgresPassword, getenv("POSTGRES_PASSWORD"))
	setString(&cfg.Repository.PostgresDB, getenv("POSTGRES_DB"))
	setString(&cfg.Repository.PostgresSSLMode, getenv("POSTGRES_SSLMODE"))
	setString(&cfg.Cache.RedisAddr, getenv("REDIS_ADDR"))
	setString(&cfg.Cache.RedisPassword, getenv("REDIS_PASSWORD"))
	setString(&cfg.EventBus.NATSUrl, getenv("NATS_URL"))
	setString(&cfg.EventBus.NATSToken, getenv("NATS_TOKEN"))

	ints := []struct {
		name string
		dest *int
	}{
		{"FILTER_PORT", &cfg.Server.Port},
		{"POSTGRES_PORT", &cfg.Repository.PostgresPort},
		{"REDIS_DB", &cfg.Cache.RedisDB},
	}
	for _, v := range ints {
		if err := setInt(v.dest, v.name, getenv(v.name)); err != nil {
			return nil, err
		}
	}

	if raw := getenv("FILTER_MAX_UPLOAD_MB"); raw != "" {
		mb, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || mb <= 0 {
			return nil, fmt.Errorf("FILTER_MAX_UPLOAD_MB must be a positive integer, got %q", raw)
		}
		cfg.Server.MaxUploadBytes = mb << 20
	}

	if raw := getenv("FILTER_RULES_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("FILTER_RULES_TTL: %w", err)
		}
		cfg.Cache.RulesTTL = ttl
	}
	return cfg, nil
}

func setString(dest *string, value string) {
	if value != "" {
		*dest = value
	}
}

func setInt(dest *int, name, value string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", name, value)
	}
	*dest = n
	return nil
}
