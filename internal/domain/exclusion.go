package domain

import (
	"context"
	"time"
)

// ExclusionRules are the saved default exclusion lists of an agreement and campaign.
type ExclusionRules struct {
	Agreement   string    `json:"agreement"`
	Campaign    string    `json:"campaign"`
	Lotacoes    []string  `json:"lotacoes,omitempty"`
	Vinculos    []string  `json:"vinculos,omitempty"`
	Secretarias []string  `json:"secretarias,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Empty reports whether the rules carry no list at all.
func (r *ExclusionRules) Empty() bool {
	return r == nil || (len(r.Lotacoes) == 0 && len(r.Vinculos) == 0 && len(r.Secretarias) == 0)
}

// RuleSource supplies saved exclusion rules. campaign is the campaign rule key
// (see CampaignType.RuleKey). Unknown pairs yield empty rules, not an error.
type RuleSource interface {
	GetExclusionRules(ctx context.Context, agreement, campaign string) (*ExclusionRules, error)
}
