package rules

import "github.com/konsi/campaign-filter/internal/domain"

// BuiltinRules returns the fixed catalog of agreement and product predicates.
func BuiltinRules() []*domain.RowRule {
	return []*domain.RowRule{
		{
			ID:          domain.RuleGovSPDepartment,
			Description: "govsp: the ALESP department is never offered",
			Expression:  `lotacao != "ALESP"`,
			Columns:     []string{domain.ColDepartment},
		},
		{
			ID:          domain.RuleGovMTCompulsory,
			Description: "govmt: compulsory margin must not be negative",
			Expression:  `compulsoria_disponivel >= 0.0`,
			Columns:     []string{domain.ColCompulsoryAvailable},
		},
		{
			ID:          domain.RuleBenefitWithdrawalIntact,
			Description: "benefit withdrawal margin fully available",
			Expression:  `beneficio_saque_disponivel == beneficio_saque_total`,
			Columns:     []string{domain.ColWithdrawalAvailable, domain.ColWithdrawalTotal},
		},
		{
			ID:          domain.RuleGovALBenefitCompound,
			Description: "goval: withdrawal and purchase benefit margins fully available",
			Expression: `beneficio_saque_disponivel == beneficio_saque_total &&
				beneficio_compra_disponivel == beneficio_compra_total`,
			Columns: []string{
				domain.ColWithdrawalAvailable, domain.ColWithdrawalTotal,
				domain.ColPurchaseAvailable, domain.ColPurchaseTotal,
			},
		},
		{
			ID:          domain.RuleCardIntact,
			Description: "card margin fully available",
			Expression:  `cartao_disponivel == cartao_total`,
			Columns:     []string{domain.ColCardAvailable, domain.ColCardTotal},
		},
	}
}
