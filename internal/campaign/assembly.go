package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/konsi/campaign-filter/internal/domain"
)

// Configuration errors. They are raised before the pipeline starts.
var (
	ErrUnknownCampaign = errors.New("unknown campaign type")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrInvalidBank     = errors.New("invalid bank configuration")
	ErrInvalidConfig   = errors.New("invalid campaign configuration")
)

// DefaultMaxAge is the maximum client age when a request sets none.
const DefaultMaxAge = 72

// Assembler turns form input into a validated AppConfig.
type Assembler struct {
	rules domain.RuleSource
	now   func() time.Time
}

// NewAssembler creates an assembler. rules may be nil when no saved
// exclusion rules are available.
func NewAssembler(rules domain.RuleSource) *Assembler {
	return &Assembler{rules: rules, now: time.Now}
}

// WithClock replaces the clock used for the birth-date cutoff.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// Build validates req and produces the configuration of one run. The
// agreement defaults to the Convenio of the first row of base.
func (a *Assembler) Build(ctx context.Context, req *domain.CampaignRequest, base *domain.Table) (*domain.AppConfig, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ErrInvalidConfig)
	}

	campaign := domain.CampaignType(strings.TrimSpace(req.Campaign))
	if !campaign.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCampaign, req.Campaign)
	}

	agreement := normalizeAgreement(req.Agreement)
	if agreement == "" && base != nil && base.Len() > 0 {
		agreement = normalizeAgreement(base.Cell(0, domain.ColAgreement))
	}
	if agreement == "" {
		return nil, fmt.Errorf("%w: agreement is required", ErrInvalidConfig)
	}

	if req.MinimumCommission < 0 {
		return nil, fmt.Errorf("%w: minimum commission must not be negative", ErrInvalidConfig)
	}
	if req.Convai < 0 || req.Convai > 100 {
		return nil, fmt.Errorf("%w: convai must be between 0 and 100", ErrInvalidConfig)
	}

	team := strings.TrimSpace(req.Team)
	if team == "" {
		team = DefaultTeam
	}
	if !ValidTeam(team) {
		return nil, fmt.Errorf("%w: unknown team %q", ErrInvalidConfig, team)
	}

	cutoff, err := a.cutoff(req.MaxAge)
	if err != nil {
		return nil, err
	}

	banks, err := buildBanks(req.Banks, campaign)
	if err != nil {
		return nil, err
	}

	saved := a.savedRules(ctx, agreement, campaign)

	return &domain.AppConfig{
		Campaign:             campaign,
		Agreement:            agreement,
		MinimumCommission:    req.MinimumCommission,
		MinimumLoanMargin:    req.MinimumLoanMargin,
		Cutoff:               cutoff,
		ExcludedDepartments:  exclusions(req.Lotacoes, saved.Lotacoes, req.LotacaoKeywords),
		ExcludedBonds:        exclusions(req.Vinculos, saved.Vinculos, req.VinculoKeywords),
		ExcludedSecretariats: exclusions(req.Secretarias, saved.Secretarias, req.SecretariaKeywords),
		Team:                 team,
		Convai:               req.Convai,
		Banks:                banks,
	}, nil
}

func (a *Assembler) cutoff(maxAge *int) (*time.Time, error) {
	age := DefaultMaxAge
	if maxAge != nil {
		age = *maxAge
	}
	if age < 0 || age > 120 {
		return nil, fmt.Errorf("%w: max age must be between 0 and 120", ErrInvalidConfig)
	}
	if age == 0 {
		return nil, nil
	}

	c := CutoffDate(a.now(), age)
	return &c, nil
}

// savedRules looks up saved exclusion rules. A failing source leaves the
// request's own selections in charge.
func (a *Assembler) savedRules(ctx context.Context, agreement string, campaign domain.CampaignType) *domain.ExclusionRules {
	empty := &domain.ExclusionRules{Agreement: agreement, Campaign: campaign.RuleKey()}
	if a.rules == nil {
		return empty
	}

	rules, err := a.rules.GetExclusionRules(ctx, agreement, campaign.RuleKey())
	if err != nil {
		slog.Warn("exclusion rules unavailable",
			"agreement", agreement,
			"campaign", campaign.RuleKey(),
			"error", err,
		)
		return empty
	}
	if rules == nil {
		return empty
	}
	return rules
}

// CutoffDate is the earliest birth date accepted for a maximum age: the date
// of now, maxAge years earlier. February 29 falls back to February 28.
func CutoffDate(now time.Time, maxAge int) time.Time {
	y, m, d := now.Date()
	target := y - maxAge
	if m == time.February && d == 29 && !isLeap(target) {
		d = 28
	}
	return time.Date(target, m, d, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func normalizeAgreement(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// exclusions merges literal selections (saved defaults when none) with
// keyword lines. Entries are trimmed, deduplicated and never empty.
func exclusions(selected, saved []string, keywords string) []string {
	literal := selected
	if len(literal) == 0 {
		literal = saved
	}

	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	for _, v := range literal {
		add(v)
	}
	for _, line := range strings.Split(keywords, "\n") {
		add(line)
	}
	return out
}

func buildBanks(reqs []domain.BankRequest, campaign domain.CampaignType) ([]domain.BankConfig, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one bank is required", ErrInvalidBank)
	}

	banks := make([]domain.BankConfig, 0, len(reqs))
	for i, r := range reqs {
		bank, err := buildBank(r, campaign)
		if err != nil {
			return nil, fmt.Errorf("bank %d: %w", i+1, err)
		}
		banks = append(banks, bank)
	}
	return banks, nil
}

func buildBank(r domain.BankRequest, campaign domain.CampaignType) (domain.BankConfig, error) {
	code, err := ResolveBank(r.Bank)
	if err != nil {
		return domain.BankConfig{}, err
	}

	if r.Coefficient < 0 {
		return domain.BankConfig{}, fmt.Errorf("%w: coefficient must not be negative", ErrInvalidBank)
	}
	if r.SecondaryCoefficient != nil && *r.SecondaryCoefficient < 0 {
		return domain.BankConfig{}, fmt.Errorf("%w: secondary coefficient must not be negative", ErrInvalidBank)
	}
	if r.Commission < 0 || r.Commission > 100 {
		return domain.BankConfig{}, fmt.Errorf("%w: commission must be between 0 and 100", ErrInvalidBank)
	}
	if r.Installments < 1 {
		return domain.BankConfig{}, fmt.Errorf("%w: installments must be at least 1", ErrInvalidBank)
	}

	column := strings.TrimSpace(r.ConditionalColumn)
	if !slices.Contains(domain.ConditionalColumns, column) {
		return domain.BankConfig{}, fmt.Errorf("%w: unknown conditional column %q", ErrInvalidBank, r.ConditionalColumn)
	}
	value := strings.TrimSpace(r.ConditionalValue)
	if column != domain.ApplyToWholeBase && value == "" {
		return domain.BankConfig{}, fmt.Errorf("%w: conditional value is required for %s", ErrInvalidBank, column)
	}
	if column == domain.ApplyToWholeBase {
		value = ""
	}

	installmentCoef, err := parseOptionalNumber(r.InstallmentCoefficient)
	if err != nil {
		return domain.BankConfig{}, fmt.Errorf("installment coefficient: %w", err)
	}

	safety, err := safetyMultiplier(r.SafetyMarginPercent)
	if err != nil {
		return domain.BankConfig{}, err
	}

	var product domain.Product
	if campaign == domain.CampaignBenefitAndCard {
		product = domain.Product(strings.TrimSpace(r.Product))
		if product != domain.ProductBenefit && product != domain.ProductCard {
			return domain.BankConfig{}, fmt.Errorf("%w: product must be %q or %q", ErrInvalidBank, domain.ProductBenefit, domain.ProductCard)
		}
	}

	return domain.BankConfig{
		Bank:                   code,
		Coefficient:            r.Coefficient,
		SecondaryCoefficient:   r.SecondaryCoefficient,
		Commission:             r.Commission,
		Installments:           r.Installments,
		InstallmentCoefficient: installmentCoef,
		SafetyMargin:           safety,
		ConditionalColumn:      column,
		ConditionalValue:       value,
		Product:                product,
	}, nil
}

// parseOptionalNumber parses decimal text with a comma or dot separator.
// Blank text is absent.
func parseOptionalNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	f := d.InexactFloat64()
	return &f, nil
}

// safetyMultiplier converts a safety-margin percent into 1 - percent/100.
func safetyMultiplier(percent *float64) (*float64, error) {
	if percent == nil {
		return nil, nil
	}
	if *percent < 0 || *percent > 100 {
		return nil, fmt.Errorf("%w: safety margin must be between 0 and 100", ErrInvalidBank)
	}

	m := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(*percent).Div(decimal.NewFromInt(100))).InexactFloat64()
	return &m, nil
}
