package domain

// RowRule is a named boolean predicate over one record, written in CEL.
// The catalog is fixed at build time; rules are not user-editable.
type RowRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`

	// CEL expression; must evaluate to bool.
	Expression string `json:"expression"`

	// Columns the expression reads; a run missing any of them cannot apply the rule.
	Columns []string `json:"columns"`
}

// Row rule identifiers.
const (
	RuleGovSPDepartment         = "govsp-alesp"
	RuleGovMTCompulsory         = "govmt-compulsory"
	RuleBenefitWithdrawalIntact = "benefit-withdrawal-intact"
	RuleGovALBenefitCompound    = "goval-benefit-compound"
	RuleCardIntact              = "card-intact"
)
