package strategy

import (
	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/rules"
)

// Combined prices benefit and card together. Each bank entry services one
// product, and each product keeps its own treated flag, so a row can be
// claimed once per product.
type Combined struct {
	engine *rules.Engine
}

// Campaign implements Strategy.
func (s *Combined) Campaign() domain.CampaignType { return domain.CampaignBenefitAndCard }

// RequiredColumns implements Strategy.
func (s *Combined) RequiredColumns(cfg *domain.AppConfig) []string {
	var cols []string
	benefit, card := products(cfg)
	if benefit {
		cols = append(cols, domain.ColWithdrawalAvailable, domain.ColWithdrawalTotal)
	}
	if card {
		cols = append(cols, domain.ColCardAvailable, domain.ColCardTotal)
	}
	if cfg.Agreement == domain.AgreementGovSP {
		cols = append(cols, domain.ColEnrollment)
	}
	return append(cols, conditionalColumns(cfg)...)
}

// Apply implements Strategy.
func (s *Combined) Apply(in *Input) ([]*domain.Record, error) {
	cfg := in.Config
	records := in.Records
	benefit, card := products(cfg)

	benefitIntact, err := s.matches(domain.RuleBenefitWithdrawalIntact, records, benefit)
	if err != nil {
		return nil, err
	}
	cardIntact, err := s.matches(domain.RuleCardIntact, records, card)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		rec.Benefit = domain.NewOffer()
		rec.Benefit.Released, rec.Benefit.Commission = 0, 0
		rec.Card = domain.NewOffer()
		rec.Card.Released, rec.Card.Commission = 0, 0
	}

	for b := range cfg.Banks {
		bank := &cfg.Banks[b]
		switch bank.Product {
		case domain.ProductBenefit:
			coef := bank.EffectiveCoefficient()
			for i, rec := range records {
				if !benefitIntact[i] || !claims(rec, bank, rec.Benefit.Treated) {
					continue
				}
				released := round2(rec.WithdrawalAvailable * coef)
				if cfg.Agreement == domain.AgreementGovSP && in.Usage.UsedBenefit(rec.Enrollment) {
					released = 0
				}
				claim(&rec.Benefit, bank, released)
			}

		case domain.ProductCard:
			for i, rec := range records {
				if !cardIntact[i] || !claims(rec, bank, rec.Card.Treated) {
					continue
				}
				claim(&rec.Card, bank, cardReleased(rec, bank, cfg, in.Usage))
			}
		}
	}

	for _, rec := range records {
		rec.CombinedCommission = rec.Benefit.Commission + rec.Card.Commission
	}

	combined := func(r *domain.Record) float64 { return r.CombinedCommission }
	return rank(records, cfg.MinimumCommission, combined, combined), nil
}

// matches evaluates a catalog rule per record. Nothing is evaluated unless
// evaluate is set, leaving every entry false.
func (s *Combined) matches(ruleID string, records []*domain.Record, evaluate bool) ([]bool, error) {
	out := make([]bool, len(records))
	if !evaluate {
		return out, nil
	}
	for i, rec := range records {
		ok, err := s.engine.Match(ruleID, rec)
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return out, nil
}

// products reports which products the bank list services.
func products(cfg *domain.AppConfig) (benefit, card bool) {
	for i := range cfg.Banks {
		switch cfg.Banks[i].Product {
		case domain.ProductBenefit:
			benefit = true
		case domain.ProductCard:
			card = true
		}
	}
	return benefit, card
}
