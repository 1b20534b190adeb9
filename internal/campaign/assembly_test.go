package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsi/campaign-filter/internal/domain"
)

type stubRules struct {
	rules map[string]*domain.ExclusionRules
	err   error
	calls []string
}

func (s *stubRules) GetExclusionRules(_ context.Context, agreement, campaign string) (*domain.ExclusionRules, error) {
	s.calls = append(s.calls, agreement+"/"+campaign)
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.rules[agreement+"/"+campaign]; ok {
		return r, nil
	}
	return &domain.ExclusionRules{Agreement: agreement, Campaign: campaign}, nil
}

func fixedClock() time.Time {
	return time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC)
}

func baseTable(agreement string) *domain.Table {
	t := domain.NewTable(domain.ColDocument, domain.ColAgreement)
	t.Append("1", agreement)
	return t
}

func validBank() domain.BankRequest {
	return domain.BankRequest{
		Bank:              "243 - Banco Master",
		Coefficient:       0.05,
		Commission:        10,
		Installments:      84,
		ConditionalColumn: domain.ApplyToWholeBase,
	}
}

func validRequest() *domain.CampaignRequest {
	return &domain.CampaignRequest{
		Campaign: "Novo",
		Team:     "csapp",
		Banks:    []domain.BankRequest{validBank()},
	}
}

func TestBuildDefaults(t *testing.T) {
	a := NewAssembler(nil).WithClock(fixedClock)

	cfg, err := a.Build(context.Background(), validRequest(), baseTable("  GovSP "))
	require.NoError(t, err)

	assert.Equal(t, domain.CampaignNewLoan, cfg.Campaign)
	assert.Equal(t, "govsp", cfg.Agreement, "agreement comes from the first row")
	assert.Equal(t, "csapp", cfg.Team)
	require.NotNil(t, cfg.Cutoff)
	assert.Equal(t, time.Date(1953, time.March, 10, 0, 0, 0, 0, time.UTC), *cfg.Cutoff)
	require.Len(t, cfg.Banks, 1)
	assert.Equal(t, "243", cfg.Banks[0].Bank)
	assert.Nil(t, cfg.Banks[0].SafetyMargin)
	assert.Nil(t, cfg.Banks[0].InstallmentCoefficient)
}

func TestBuildRequestAgreementWins(t *testing.T) {
	req := validRequest()
	req.Agreement = "GOVMT"

	cfg, err := NewAssembler(nil).Build(context.Background(), req, baseTable("govsp"))
	require.NoError(t, err)
	assert.Equal(t, "govmt", cfg.Agreement)
}

func TestBuildMaxAge(t *testing.T) {
	a := NewAssembler(nil).WithClock(fixedClock)

	zero := 0
	req := validRequest()
	req.MaxAge = &zero
	cfg, err := a.Build(context.Background(), req, baseTable("govsp"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Cutoff, "zero disables the age filter")

	forty := 40
	req.MaxAge = &forty
	cfg, err = a.Build(context.Background(), req, baseTable("govsp"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(1985, time.March, 10, 0, 0, 0, 0, time.UTC), *cfg.Cutoff)

	negative := -1
	req.MaxAge = &negative
	_, err = a.Build(context.Background(), req, baseTable("govsp"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCutoffDateLeapDay(t *testing.T) {
	leap := time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(1952, time.February, 29, 0, 0, 0, 0, time.UTC), CutoffDate(leap, 72))
	assert.Equal(t, time.Date(1951, time.February, 28, 0, 0, 0, 0, time.UTC), CutoffDate(leap, 73))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CampaignRequest)
		want   error
	}{
		{"unknown campaign", func(r *domain.CampaignRequest) { r.Campaign = "Consórcio" }, ErrUnknownCampaign},
		{"no banks", func(r *domain.CampaignRequest) { r.Banks = nil }, ErrInvalidBank},
		{"unknown bank", func(r *domain.CampaignRequest) { r.Banks[0].Bank = "999 - Nope" }, ErrInvalidBank},
		{"negative coefficient", func(r *domain.CampaignRequest) { r.Banks[0].Coefficient = -1 }, ErrInvalidBank},
		{"commission over 100", func(r *domain.CampaignRequest) { r.Banks[0].Commission = 101 }, ErrInvalidBank},
		{"zero installments", func(r *domain.CampaignRequest) { r.Banks[0].Installments = 0 }, ErrInvalidBank},
		{"unknown column", func(r *domain.CampaignRequest) { r.Banks[0].ConditionalColumn = "Cidade" }, ErrInvalidBank},
		{"missing conditional value", func(r *domain.CampaignRequest) { r.Banks[0].ConditionalColumn = domain.ColDepartment }, ErrInvalidBank},
		{"malformed installment coefficient", func(r *domain.CampaignRequest) { r.Banks[0].InstallmentCoefficient = "0,02a" }, ErrInvalidNumber},
		{"safety margin over 100", func(r *domain.CampaignRequest) { p := 150.0; r.Banks[0].SafetyMarginPercent = &p }, ErrInvalidBank},
		{"combined without product", func(r *domain.CampaignRequest) { r.Campaign = "Benefício & Cartão" }, ErrInvalidBank},
		{"unknown team", func(r *domain.CampaignRequest) { r.Team = "sales" }, ErrInvalidConfig},
		{"convai over 100", func(r *domain.CampaignRequest) { r.Convai = 120 }, ErrInvalidConfig},
		{"negative minimum commission", func(r *domain.CampaignRequest) { r.MinimumCommission = -5 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			_, err := NewAssembler(nil).Build(context.Background(), req, baseTable("govsp"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildMissingAgreement(t *testing.T) {
	_, err := NewAssembler(nil).Build(context.Background(), validRequest(), domain.NewTable(domain.ColDocument))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildBankFields(t *testing.T) {
	pct := 10.0
	second := 0.03
	req := validRequest()
	req.Campaign = "Benefício & Cartão"
	req.Banks = []domain.BankRequest{{
		Bank:                   "6613",
		Coefficient:            0.1,
		SecondaryCoefficient:   &second,
		Commission:             5,
		Installments:           96,
		InstallmentCoefficient: " 0,0225 ",
		SafetyMarginPercent:    &pct,
		ConditionalColumn:      domain.ColBond,
		ConditionalValue:       " efetivo ",
		Product:                "Consignado",
	}}

	cfg, err := NewAssembler(nil).Build(context.Background(), req, baseTable("govsp"))
	require.NoError(t, err)

	bank := cfg.Banks[0]
	assert.Equal(t, "6613", bank.Bank)
	require.NotNil(t, bank.InstallmentCoefficient)
	assert.Equal(t, 0.0225, *bank.InstallmentCoefficient)
	require.NotNil(t, bank.SafetyMargin)
	assert.Equal(t, 0.9, *bank.SafetyMargin)
	assert.Equal(t, "efetivo", bank.ConditionalValue)
	assert.Equal(t, domain.ProductCard, bank.Product)
}

func TestBuildMergesSavedRules(t *testing.T) {
	src := &stubRules{rules: map[string]*domain.ExclusionRules{
		"govsp/benefício_cartão": {
			Lotacoes: []string{"ALESP", "SEFAZ"},
			Vinculos: []string{"PENSIONISTA"},
		},
	}}

	req := validRequest()
	req.Campaign = "Benefício & Cartão"
	req.Banks[0].Product = "Benefício"
	req.Vinculos = []string{"TEMPORARIO"}
	req.LotacaoKeywords = "saude\n\n  SEFAZ \nsaude"
	req.SecretariaKeywords = "educacao"

	cfg, err := NewAssembler(src).Build(context.Background(), req, baseTable("govsp"))
	require.NoError(t, err)

	assert.Equal(t, []string{"govsp/benefício_cartão"}, src.calls)
	assert.Equal(t, []string{"ALESP", "SEFAZ", "saude"}, cfg.ExcludedDepartments)
	assert.Equal(t, []string{"TEMPORARIO"}, cfg.ExcludedBonds, "request selections replace saved ones")
	assert.Equal(t, []string{"educacao"}, cfg.ExcludedSecretariats)
}

func TestBuildIgnoresFailingRuleSource(t *testing.T) {
	src := &stubRules{err: errors.New("connection refused")}
	req := validRequest()
	req.LotacaoKeywords = "saude"

	cfg, err := NewAssembler(src).Build(context.Background(), req, baseTable("govsp"))
	require.NoError(t, err)
	assert.Equal(t, []string{"saude"}, cfg.ExcludedDepartments)
}

func TestResolveBank(t *testing.T) {
	code, err := ResolveBank("707- Banco Daycoval")
	require.NoError(t, err)
	assert.Equal(t, "707", code)

	code, err = ResolveBank(" 955 ")
	require.NoError(t, err)
	assert.Equal(t, "955", code)

	_, err = ResolveBank("1234")
	assert.ErrorIs(t, err, ErrInvalidBank)

	assert.Len(t, Banks(), 16)
	assert.True(t, ValidTeam("outbound_virada"))
	assert.False(t, ValidTeam("OUTBOUND"))
}
