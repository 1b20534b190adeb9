package strategy

import (
	"strconv"

	"github.com/konsi/campaign-filter/internal/domain"
)

// NewLoan prices new payroll loans from the loan margin.
type NewLoan struct{}

// Campaign implements Strategy.
func (s *NewLoan) Campaign() domain.CampaignType { return domain.CampaignNewLoan }

// RequiredColumns implements Strategy.
func (s *NewLoan) RequiredColumns(cfg *domain.AppConfig) []string {
	return append([]string{domain.ColLoanAvailable}, conditionalColumns(cfg)...)
}

// Apply implements Strategy.
//
// The installment is the usable margin itself, not released over an
// installment coefficient as the other products do.
func (s *NewLoan) Apply(in *Input) ([]*domain.Record, error) {
	records := in.Records
	for _, rec := range records {
		rec.Loan = domain.NewOffer()
	}

	for i := range in.Config.Banks {
		bank := &in.Config.Banks[i]
		for _, rec := range records {
			if !claims(rec, bank, rec.Loan.Treated) {
				continue
			}

			margin := rec.LoanAvailable
			if bank.SafetyMargin != nil {
				margin *= *bank.SafetyMargin
			}

			released := round2(margin * bank.Coefficient)
			rec.Loan.Released = released
			rec.Loan.Installment = round2(margin)
			rec.Loan.Commission = round2(released * bank.CommissionRate())
			rec.Loan.Bank = bank.Bank
			rec.Loan.Term = strconv.Itoa(bank.Installments)
			rec.Loan.Treated = true
		}
	}

	return rank(records, in.Config.MinimumCommission,
		func(r *domain.Record) float64 { return r.Loan.Commission },
		func(r *domain.Record) float64 { return r.Loan.Released },
	), nil
}
