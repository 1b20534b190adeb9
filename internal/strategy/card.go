package strategy

import (
	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/rules"
)

// Card prices the payroll credit card. Only rows with an untouched card
// margin are offered.
type Card struct {
	engine *rules.Engine
}

// Campaign implements Strategy.
func (s *Card) Campaign() domain.CampaignType { return domain.CampaignCard }

// RequiredColumns implements Strategy.
func (s *Card) RequiredColumns(cfg *domain.AppConfig) []string {
	cols := []string{domain.ColCardAvailable, domain.ColCardTotal}
	if cfg.Agreement == domain.AgreementGovSP {
		cols = append(cols, domain.ColEnrollment)
	}
	return append(cols, conditionalColumns(cfg)...)
}

// Apply implements Strategy.
func (s *Card) Apply(in *Input) ([]*domain.Record, error) {
	cfg := in.Config

	records, err := s.engine.Filter(domain.RuleCardIntact, in.Records)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		rec.Card = domain.NewOffer()
	}

	for b := range cfg.Banks {
		bank := &cfg.Banks[b]
		for _, rec := range records {
			if !claims(rec, bank, rec.Card.Treated) {
				continue
			}
			claim(&rec.Card, bank, cardReleased(rec, bank, cfg, in.Usage))
		}
	}

	return rank(records, cfg.MinimumCommission,
		func(r *domain.Record) float64 { return r.Card.Commission },
		func(r *domain.Record) float64 { return r.Card.Released },
	), nil
}

// cardReleased is the card margin times the bank coefficient, or 0 for a
// govsp enrollment that already used its card.
func cardReleased(rec *domain.Record, bank *domain.BankConfig, cfg *domain.AppConfig, usage *domain.PriorUsage) float64 {
	if cfg.Agreement == domain.AgreementGovSP && usage.UsedCard(rec.Enrollment) {
		return 0
	}
	return round2(rec.CardAvailable * bank.Coefficient)
}
