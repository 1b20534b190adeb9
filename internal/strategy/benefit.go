package strategy

import (
	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/rules"
)

// withdrawalNarrowingExempt lists agreements whose benefit rows are not
// narrowed to an intact withdrawal margin.
var withdrawalNarrowingExempt = map[string]bool{
	domain.AgreementPrefRJ: true,
	domain.AgreementGovPI:  true,
	domain.AgreementGovAL:  true,
	domain.AgreementGovCE:  true,
}

// Benefit prices the benefit card withdrawal.
type Benefit struct {
	engine *rules.Engine
}

// Campaign implements Strategy.
func (s *Benefit) Campaign() domain.CampaignType { return domain.CampaignBenefit }

// RequiredColumns implements Strategy.
func (s *Benefit) RequiredColumns(cfg *domain.AppConfig) []string {
	cols := []string{domain.ColWithdrawalAvailable, domain.ColWithdrawalTotal}
	switch cfg.Agreement {
	case domain.AgreementGovAL:
		cols = append(cols, domain.ColPurchaseAvailable, domain.ColPurchaseTotal)
	case domain.AgreementGovSP:
		cols = append(cols, domain.ColEnrollment)
	}
	return append(cols, conditionalColumns(cfg)...)
}

// Apply implements Strategy.
func (s *Benefit) Apply(in *Input) ([]*domain.Record, error) {
	cfg := in.Config
	records := in.Records

	var err error
	if cfg.Agreement == domain.AgreementGovSP {
		if records, err = filterIf(s.engine, domain.RuleGovSPDepartment, in, records); err != nil {
			return nil, err
		}
	}
	if !withdrawalNarrowingExempt[cfg.Agreement] {
		if records, err = s.engine.Filter(domain.RuleBenefitWithdrawalIntact, records); err != nil {
			return nil, err
		}
	}

	var compound []bool
	if cfg.Agreement == domain.AgreementGovAL {
		compound = make([]bool, len(records))
		for i, rec := range records {
			if compound[i], err = s.engine.Match(domain.RuleGovALBenefitCompound, rec); err != nil {
				return nil, err
			}
		}
	}

	for _, rec := range records {
		rec.Benefit = domain.NewOffer()
	}

	for b := range cfg.Banks {
		bank := &cfg.Banks[b]
		coef := bank.EffectiveCoefficient()
		secondary, hasSecondary := bank.EffectiveSecondaryCoefficient()

		for i, rec := range records {
			if !claims(rec, bank, rec.Benefit.Treated) {
				continue
			}

			var released float64
			switch {
			case compound == nil:
				released = round2(rec.WithdrawalAvailable * coef)
			case compound[i]:
				released = round2((rec.WithdrawalAvailable + rec.PurchaseAvailable) * coef)
			case hasSecondary:
				released = round2(rec.WithdrawalAvailable * secondary)
			default:
				released = 0
			}

			if cfg.Agreement == domain.AgreementGovSP && in.Usage.UsedBenefit(rec.Enrollment) {
				released = 0
			}

			claim(&rec.Benefit, bank, released)
		}
	}

	return rank(records, cfg.MinimumCommission,
		func(r *domain.Record) float64 { return r.Benefit.Commission },
		func(r *domain.Record) float64 { return r.Benefit.Released },
	), nil
}
