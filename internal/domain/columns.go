package domain

// Input column names, as produced by the sanitization exports.
const (
	ColOrigin              = "Origem_Dado"
	ColClientName          = "Nome_Cliente"
	ColDocument            = "CPF"
	ColEnrollment          = "Matricula"
	ColBirthDate           = "Data_Nascimento"
	ColAgreement           = "Convenio"
	ColDepartment          = "Lotacao"
	ColSecretariat         = "Secretaria"
	ColBond                = "Vinculo_Servidor"
	ColLoanTotal           = "MG_Emprestimo_Total"
	ColLoanAvailable       = "MG_Emprestimo_Disponivel"
	ColWithdrawalTotal     = "MG_Beneficio_Saque_Total"
	ColWithdrawalAvailable = "MG_Beneficio_Saque_Disponivel"
	ColPurchaseTotal       = "MG_Beneficio_Compra_Total"
	ColPurchaseAvailable   = "MG_Beneficio_Compra_Disponivel"
	ColCardTotal           = "MG_Cartao_Total"
	ColCardAvailable       = "MG_Cartao_Disponivel"
	ColCompulsoryAvailable = "MG_Compulsoria_Disponivel"
)

// Derived columns populated by the calculation strategies.
const (
	ColReleasedLoan       = "valor_liberado_emprestimo"
	ColReleasedBenefit    = "valor_liberado_beneficio"
	ColReleasedCard       = "valor_liberado_cartao"
	ColCommissionLoan     = "comissao_emprestimo"
	ColCommissionBenefit  = "comissao_beneficio"
	ColCommissionCard     = "comissao_cartao"
	ColInstallmentLoan    = "valor_parcela_emprestimo"
	ColInstallmentBenefit = "valor_parcela_beneficio"
	ColInstallmentCard    = "valor_parcela_cartao"
	ColBankLoan           = "banco_emprestimo"
	ColBankBenefit        = "banco_beneficio"
	ColBankCard           = "banco_cartao"
	ColTermLoan           = "prazo_emprestimo"
	ColTermBenefit        = "prazo_beneficio"
	ColTermCard           = "prazo_cartao"
	ColCampaign           = "Campanha"
)

// ApplyToWholeBase is the conditional column value that makes a bank rule apply to every row.
const ApplyToWholeBase = "Aplicar a toda a base"

// MaxInputColumns bounds how many leading input columns a run keeps.
const MaxInputColumns = 26

// ConditionalColumns lists the columns a bank rule may be restricted by.
var ConditionalColumns = []string{ColBond, ColDepartment, ColSecretariat, ApplyToWholeBase}

// FinalColumns is the fixed output schema, in order.
var FinalColumns = []string{
	ColOrigin, ColClientName, ColEnrollment, ColDocument, ColBirthDate,
	ColLoanTotal, ColLoanAvailable,
	ColWithdrawalTotal, ColWithdrawalAvailable,
	ColCardTotal, ColCardAvailable,
	ColAgreement, ColBond, ColDepartment, ColSecretariat,
	"FONE1", "FONE2", "FONE3", "FONE4",
	ColReleasedLoan, ColReleasedBenefit, ColReleasedCard,
	ColCommissionLoan, ColCommissionBenefit, ColCommissionCard,
	ColInstallmentLoan, ColInstallmentBenefit, ColInstallmentCard,
	ColBankLoan, ColBankBenefit, ColBankCard,
	ColTermLoan, ColTermBenefit, ColTermCard,
	ColCampaign,
}

// OutputRenames maps final columns to their presentation names.
var OutputRenames = map[string]string{
	ColOrigin:              "ORIGEM DO DADO",
	ColLoanTotal:           "Mg_Emprestimo_Total",
	ColLoanAvailable:       "Mg_Emprestimo_Disponivel",
	ColWithdrawalTotal:     "Mg_Beneficio_Saque_Total",
	ColWithdrawalAvailable: "Mg_Beneficio_Saque_Disponivel",
	ColCardTotal:           "Mg_Cartao_Total",
	ColCardAvailable:       "Mg_Cartao_Disponivel",
}

// OutputColumnName returns the presentation name of a final column.
func OutputColumnName(column string) string {
	if renamed, ok := OutputRenames[column]; ok {
		return renamed
	}
	return column
}
