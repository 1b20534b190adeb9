package domain

import (
	"strings"
	"time"
)

// CampaignType selects the calculation strategy of a run.
type CampaignType string

const (
	CampaignNewLoan        CampaignType = "Novo"
	CampaignBenefit        CampaignType = "Benefício"
	CampaignCard           CampaignType = "Cartão"
	CampaignBenefitAndCard CampaignType = "Benefício & Cartão"
)

// CampaignTypes lists the supported campaign types in display order.
var CampaignTypes = []CampaignType{CampaignNewLoan, CampaignBenefit, CampaignCard, CampaignBenefitAndCard}

// Valid reports whether c is a known campaign type.
func (c CampaignType) Valid() bool {
	for _, known := range CampaignTypes {
		if c == known {
			return true
		}
	}
	return false
}

// Slug is the campaign fragment used in the Campanha label, e.g. "benefício&cartão".
func (c CampaignType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(c)), " & ", "&")
}

// RuleKey is the key saved exclusion rules are stored under, e.g. "benefício_cartão".
func (c CampaignType) RuleKey() string {
	key := strings.ReplaceAll(strings.ToLower(string(c)), " & ", "_")
	return strings.ReplaceAll(key, " ", "_")
}

// Product is the single product a bank entry services in a combined campaign.
type Product string

const (
	ProductBenefit Product = "Benefício"
	ProductCard    Product = "Consignado"
)

// Agreements with dedicated rules.
const (
	AgreementGovSP  = "govsp"
	AgreementGovMT  = "govmt"
	AgreementGovAL  = "goval"
	AgreementGovPI  = "govpi"
	AgreementGovCE  = "govce"
	AgreementPrefRJ = "prefrj"
)

// BankConfig is one bank's rule. Built once before the run; read-only afterwards.
type BankConfig struct {
	Bank                   string   `json:"bank"`
	Coefficient            float64  `json:"coefficient"`
	SecondaryCoefficient   *float64 `json:"secondaryCoefficient,omitempty"`
	Commission             float64  `json:"commission"` // percent
	Installments           int      `json:"installments"`
	InstallmentCoefficient *float64 `json:"installmentCoefficient,omitempty"`
	SafetyMargin           *float64 `json:"safetyMargin,omitempty"` // multiplier, 1 - percent/100
	ConditionalColumn      string   `json:"conditionalColumn"`
	ConditionalValue       string   `json:"conditionalValue,omitempty"`
	Product                Product  `json:"product,omitempty"`
}

// AppliesToWholeBase reports whether the rule has no column restriction.
func (b *BankConfig) AppliesToWholeBase() bool {
	return b.ConditionalColumn == ApplyToWholeBase
}

// SafetyMultiplier returns the safety-margin multiplier, 1.0 when none is configured.
func (b *BankConfig) SafetyMultiplier() float64 {
	if b.SafetyMargin == nil {
		return 1.0
	}
	return *b.SafetyMargin
}

// EffectiveCoefficient is the coefficient scaled by the safety margin.
func (b *BankConfig) EffectiveCoefficient() float64 {
	return b.Coefficient * b.SafetyMultiplier()
}

// EffectiveSecondaryCoefficient is the secondary coefficient scaled by the safety margin.
// ok is false when no (non-zero) secondary coefficient is configured.
func (b *BankConfig) EffectiveSecondaryCoefficient() (coef float64, ok bool) {
	if b.SecondaryCoefficient == nil || *b.SecondaryCoefficient == 0 {
		return 0, false
	}
	return *b.SecondaryCoefficient * b.SafetyMultiplier(), true
}

// CommissionRate is the commission as a fraction.
func (b *BankConfig) CommissionRate() float64 {
	return b.Commission / 100
}

// AppConfig is the validated, immutable configuration of one pipeline run.
type AppConfig struct {
	Campaign          CampaignType `json:"campaign"`
	Agreement         string       `json:"agreement"`
	MinimumCommission float64      `json:"minimumCommission"`
	MinimumLoanMargin float64      `json:"minimumLoanMargin"`

	// Cutoff is the earliest accepted birth date; nil disables the age filter.
	Cutoff *time.Time `json:"cutoff,omitempty"`

	ExcludedDepartments  []string `json:"excludedDepartments,omitempty"`
	ExcludedBonds        []string `json:"excludedBonds,omitempty"`
	ExcludedSecretariats []string `json:"excludedSecretariats,omitempty"`

	Team   string       `json:"team"`
	Convai float64      `json:"convai"`
	Banks  []BankConfig `json:"banks"`
}

// PriorUsage holds enrollment ids computed over the unfiltered table.
type PriorUsage struct {
	Benefit      map[string]struct{}
	Card         map[string]struct{}
	NegativeLoan map[string]struct{}
}

// NewPriorUsage returns an empty snapshot.
func NewPriorUsage() *PriorUsage {
	return &PriorUsage{
		Benefit:      make(map[string]struct{}),
		Card:         make(map[string]struct{}),
		NegativeLoan: make(map[string]struct{}),
	}
}

// UsedBenefit reports prior benefit-withdrawal consumption for an enrollment id.
func (p *PriorUsage) UsedBenefit(enrollment string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Benefit[enrollment]
	return ok
}

// UsedCard reports prior card consumption for an enrollment id.
func (p *PriorUsage) UsedCard(enrollment string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Card[enrollment]
	return ok
}

// HasNegativeLoan reports a negative loan margin for an enrollment id.
func (p *PriorUsage) HasNegativeLoan(enrollment string) bool {
	if p == nil {
		return false
	}
	_, ok := p.NegativeLoan[enrollment]
	return ok
}
