package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsi/campaign-filter/internal/domain"
)

func record(cells map[string]string) *domain.Record {
	return domain.NewRecord(cells)
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, 0, engine.RulesCount())
}

func TestDefaultEngineLoadsCatalog(t *testing.T) {
	engine, err := NewDefaultEngine()
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, len(BuiltinRules()), engine.RulesCount())
	for _, rule := range BuiltinRules() {
		cols, err := engine.Columns(rule.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, cols, rule.ID)
	}

	loaded := engine.GetLoadedRules()
	require.Len(t, loaded, len(BuiltinRules()))
	for i := 1; i < len(loaded); i++ {
		assert.Less(t, loaded[i-1].ID, loaded[i].ID)
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	err := engine.LoadRule(&domain.RowRule{
		ID:         "invalid-rule",
		Expression: "this is not valid CEL !!!",
	})
	assert.Error(t, err)

	err = engine.LoadRule(&domain.RowRule{
		ID:         "non-bool",
		Expression: "cartao_total * 2.0",
	})
	assert.Error(t, err, "non-bool expressions must be rejected")
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	err := engine.ValidateRule(&domain.RowRule{ID: "ok", Expression: `lotacao == "X"`})
	require.NoError(t, err)
	assert.Equal(t, 0, engine.RulesCount())

	assert.Error(t, engine.ValidateRule(nil))
}

func TestMatchUnknownRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	_, err := engine.Match("nope", record(nil))
	assert.Error(t, err)
}

func TestBuiltinPredicates(t *testing.T) {
	engine, err := NewDefaultEngine()
	require.NoError(t, err)
	defer engine.Close()

	tests := []struct {
		name  string
		rule  string
		cells map[string]string
		want  bool
	}{
		{"alesp excluded", domain.RuleGovSPDepartment, map[string]string{domain.ColDepartment: "ALESP"}, false},
		{"other department kept", domain.RuleGovSPDepartment, map[string]string{domain.ColDepartment: "SEDUC"}, true},
		{"alesp match is exact", domain.RuleGovSPDepartment, map[string]string{domain.ColDepartment: "alesp"}, true},
		{"compulsory zero", domain.RuleGovMTCompulsory, map[string]string{domain.ColCompulsoryAvailable: "0"}, true},
		{"compulsory negative", domain.RuleGovMTCompulsory, map[string]string{domain.ColCompulsoryAvailable: "-10.5"}, false},
		{"compulsory missing", domain.RuleGovMTCompulsory, map[string]string{domain.ColCompulsoryAvailable: ""}, false},
		{"withdrawal intact", domain.RuleBenefitWithdrawalIntact, map[string]string{
			domain.ColWithdrawalAvailable: "300.5", domain.ColWithdrawalTotal: "300.50",
		}, true},
		{"withdrawal used", domain.RuleBenefitWithdrawalIntact, map[string]string{
			domain.ColWithdrawalAvailable: "100", domain.ColWithdrawalTotal: "300",
		}, false},
		{"goval compound holds", domain.RuleGovALBenefitCompound, map[string]string{
			domain.ColWithdrawalAvailable: "100", domain.ColWithdrawalTotal: "100",
			domain.ColPurchaseAvailable: "50", domain.ColPurchaseTotal: "50",
		}, true},
		{"goval purchase used", domain.RuleGovALBenefitCompound, map[string]string{
			domain.ColWithdrawalAvailable: "100", domain.ColWithdrawalTotal: "100",
			domain.ColPurchaseAvailable: "10", domain.ColPurchaseTotal: "50",
		}, false},
		{"card intact", domain.RuleCardIntact, map[string]string{
			domain.ColCardAvailable: "5000", domain.ColCardTotal: "5000",
		}, true},
		{"card missing total", domain.RuleCardIntact, map[string]string{
			domain.ColCardAvailable: "5000",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Match(tt.rule, record(tt.cells))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	engine, err := NewDefaultEngine()
	require.NoError(t, err)
	defer engine.Close()

	records := []*domain.Record{
		record(map[string]string{domain.ColEnrollment: "1", domain.ColCardAvailable: "10", domain.ColCardTotal: "10"}),
		record(map[string]string{domain.ColEnrollment: "2", domain.ColCardAvailable: "5", domain.ColCardTotal: "10"}),
		record(map[string]string{domain.ColEnrollment: "3", domain.ColCardAvailable: "7", domain.ColCardTotal: "7"}),
	}

	kept, err := engine.Filter(domain.RuleCardIntact, records)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].Enrollment)
	assert.Equal(t, "3", kept[1].Enrollment)
	assert.Len(t, records, 3, "input slice must not be modified")
}
