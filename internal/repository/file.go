package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/konsi/campaign-filter/internal/domain"
)

type fileRules struct {
	Lotacoes    []string `json:"lotacoes"`
	Vinculos    []string `json:"vinculos"`
	Secretarias []string `json:"secretarias"`
}

// FileRuleSource serves exclusion rules from a JSON document laid out as
// {agreement: {campaignKey: {lotacoes, vinculos, secretarias}}}.
type FileRuleSource struct {
	rules map[string]map[string]fileRules
}

// OpenRuleFile loads a rules document. A missing file yields a source
// without rules.
func OpenRuleFile(path string) (*FileRuleSource, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &FileRuleSource{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a rules document.
func ParseRules(data []byte) (*FileRuleSource, error) {
	src := &FileRuleSource{}
	if err := json.Unmarshal(data, &src.rules); err != nil {
		return nil, fmt.Errorf("malformed rules file: %w", err)
	}
	return src, nil
}

// GetExclusionRules implements domain.RuleSource.
func (s *FileRuleSource) GetExclusionRules(_ context.Context, agreement, campaign string) (*domain.ExclusionRules, error) {
	r := s.rules[agreement][campaign]
	return &domain.ExclusionRules{
		Agreement:   agreement,
		Campaign:    campaign,
		Lotacoes:    r.Lotacoes,
		Vinculos:    r.Vinculos,
		Secretarias: r.Secretarias,
	}, nil
}

// All returns every rule set in the document, ordered by agreement then campaign.
func (s *FileRuleSource) All() []*domain.ExclusionRules {
	var out []*domain.ExclusionRules
	for _, agreement := range sortedKeys(s.rules) {
		for _, campaign := range sortedKeys(s.rules[agreement]) {
			rules, _ := s.GetExclusionRules(context.Background(), agreement, campaign)
			out = append(out, rules)
		}
	}
	return out
}

// ImportRules copies the rule sets of src into repo, skipping pairs the
// repository already holds. It returns the number of rule sets written.
func ImportRules(ctx context.Context, repo domain.Repository, src *FileRuleSource) (int, error) {
	imported := 0
	for _, rules := range src.All() {
		existing, err := repo.GetExclusionRules(ctx, rules.Agreement, rules.Campaign)
		if err != nil {
			return imported, err
		}
		if !existing.Empty() {
			continue
		}
		if err := repo.SaveExclusionRules(ctx, rules); err != nil {
			return imported, fmt.Errorf("failed to import %s/%s: %w", rules.Agreement, rules.Campaign, err)
		}
		imported++
	}
	return imported, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
