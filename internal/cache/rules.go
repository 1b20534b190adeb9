package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/konsi/campaign-filter/internal/domain"
)

// DefaultRulesTTL bounds how long saved exclusion rules are served from cache.
const DefaultRulesTTL = 10 * time.Minute

// RuleSource serves exclusion rules from a cache in front of another source.
// Cache failures fall through to the underlying source.
type RuleSource struct {
	next  domain.RuleSource
	cache domain.Cache
	ttl   time.Duration
}

// NewRuleSource wraps next with c.
func NewRuleSource(next domain.RuleSource, c domain.Cache, ttl time.Duration) *RuleSource {
	if ttl <= 0 {
		ttl = DefaultRulesTTL
	}
	return &RuleSource{next: next, cache: c, ttl: ttl}
}

// GetExclusionRules implements domain.RuleSource.
func (s *RuleSource) GetExclusionRules(ctx context.Context, agreement, campaign string) (*domain.ExclusionRules, error) {
	key := rulesKey(agreement, campaign)

	if data, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("rules cache read failed", "key", key, "error", err)
	} else if data != nil {
		var rules domain.ExclusionRules
		if err := json.Unmarshal(data, &rules); err == nil {
			return &rules, nil
		}
		slog.Warn("discarding undecodable cached rules", "key", key)
	}

	rules, err := s.next.GetExclusionRules(ctx, agreement, campaign)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rules); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			slog.Warn("rules cache write failed", "key", key, "error", err)
		}
	}
	return rules, nil
}

// Invalidate drops the cached rules of an agreement and campaign key.
func (s *RuleSource) Invalidate(ctx context.Context, agreement, campaign string) error {
	return s.cache.Delete(ctx, rulesKey(agreement, campaign))
}

func rulesKey(agreement, campaign string) string {
	return "rules:" + agreement + ":" + campaign
}
