package domain

// CampaignRequest is the form input of a run, before validation.
type CampaignRequest struct {
	Campaign          string  `json:"campaign"`
	Agreement         string  `json:"agreement,omitempty"`
	MinimumCommission float64 `json:"minimumCommission"`
	MinimumLoanMargin float64 `json:"minimumLoanMargin"`
	MaxAge            *int    `json:"maxAge,omitempty"`
	Team              string  `json:"team"`
	Convai            float64 `json:"convai"`

	// Literal selections; saved exclusion rules fill them when empty.
	Lotacoes    []string `json:"lotacoes,omitempty"`
	Vinculos    []string `json:"vinculos,omitempty"`
	Secretarias []string `json:"secretarias,omitempty"`

	// Free text, one keyword per line.
	LotacaoKeywords    string `json:"lotacaoKeywords,omitempty"`
	VinculoKeywords    string `json:"vinculoKeywords,omitempty"`
	SecretariaKeywords string `json:"secretariaKeywords,omitempty"`

	Banks []BankRequest `json:"banks"`
}

// BankRequest is the form input of one bank rule.
type BankRequest struct {
	Bank                   string   `json:"bank"`
	Coefficient            float64  `json:"coefficient"`
	SecondaryCoefficient   *float64 `json:"secondaryCoefficient,omitempty"`
	Commission             float64  `json:"commission"`
	Installments           int      `json:"installments"`
	InstallmentCoefficient string   `json:"installmentCoefficient,omitempty"`
	SafetyMarginPercent    *float64 `json:"safetyMarginPercent,omitempty"`
	ConditionalColumn      string   `json:"conditionalColumn"`
	ConditionalValue       string   `json:"conditionalValue,omitempty"`
	Product                string   `json:"product,omitempty"`
}
