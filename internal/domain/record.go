package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Missing returns the marker used for absent numeric values (NaN).
// Comparisons against it are always false, so rows with missing margins
// never satisfy a threshold or equality filter.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// ParseAmount parses a margin cell. Dot decimals are expected; a single comma
// without dots is accepted as decimal separator. Unparseable cells are missing.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing()
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		if v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
			return v
		}
	}
	return Missing()
}

// FormatAmount renders a money value with two decimals; missing values render empty.
func FormatAmount(v float64) string {
	if IsMissing(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Offer holds the derived fields of one product family for a row.
type Offer struct {
	Released    float64
	Commission  float64
	Installment float64
	Bank        string
	Term        string

	// Treated is set once a bank claims the row for this product.
	Treated bool
}

// NewOffer returns an offer with every amount missing.
func NewOffer() Offer {
	return Offer{
		Released:    Missing(),
		Commission:  Missing(),
		Installment: Missing(),
	}
}

// Record is one client row with its parsed fields and derived offers.
type Record struct {
	cells map[string]string

	Name        string
	Document    string
	Enrollment  string
	Agreement   string
	Department  string
	Bond        string
	Secretariat string

	BirthDate    time.Time
	HasBirthDate bool

	LoanAvailable       float64
	WithdrawalAvailable float64
	WithdrawalTotal     float64
	PurchaseAvailable   float64
	PurchaseTotal       float64
	CardAvailable       float64
	CardTotal           float64
	CompulsoryAvailable float64

	Loan    Offer
	Benefit Offer
	Card    Offer

	CombinedCommission float64
	Campaign           string
}

// NewRecord builds a record from column/value pairs.
func NewRecord(cells map[string]string) *Record {
	c := make(map[string]string, len(cells))
	for k, v := range cells {
		c[k] = v
	}

	return &Record{
		cells:               c,
		Name:                c[ColClientName],
		Document:            c[ColDocument],
		Enrollment:          c[ColEnrollment],
		Agreement:           c[ColAgreement],
		Department:          c[ColDepartment],
		Bond:                c[ColBond],
		Secretariat:         c[ColSecretariat],
		LoanAvailable:       ParseAmount(c[ColLoanAvailable]),
		WithdrawalAvailable: ParseAmount(c[ColWithdrawalAvailable]),
		WithdrawalTotal:     ParseAmount(c[ColWithdrawalTotal]),
		PurchaseAvailable:   ParseAmount(c[ColPurchaseAvailable]),
		PurchaseTotal:       ParseAmount(c[ColPurchaseTotal]),
		CardAvailable:       ParseAmount(c[ColCardAvailable]),
		CardTotal:           ParseAmount(c[ColCardTotal]),
		CompulsoryAvailable: ParseAmount(c[ColCompulsoryAvailable]),
		Loan:                NewOffer(),
		Benefit:             NewOffer(),
		Card:                NewOffer(),
		CombinedCommission:  Missing(),
	}
}

// RecordsFromTable converts every row of t into a record.
func RecordsFromTable(t *Table) []*Record {
	records := make([]*Record, 0, t.Len())
	for _, row := range t.Rows {
		cells := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				cells[col] = row[i]
			} else {
				cells[col] = ""
			}
		}
		records = append(records, NewRecord(cells))
	}
	return records
}

// Cell returns the raw input cell for a column.
func (r *Record) Cell(column string) string {
	return r.cells[column]
}

// Field returns the current text of an organizational or identity column,
// falling back to the raw cell for any other column.
func (r *Record) Field(column string) string {
	switch column {
	case ColClientName:
		return r.Name
	case ColDocument:
		return r.Document
	case ColEnrollment:
		return r.Enrollment
	case ColAgreement:
		return r.Agreement
	case ColDepartment:
		return r.Department
	case ColBond:
		return r.Bond
	case ColSecretariat:
		return r.Secretariat
	default:
		return r.cells[column]
	}
}

// Value renders the output cell for a final-schema column.
func (r *Record) Value(column string) string {
	switch column {
	case ColBirthDate:
		if r.HasBirthDate {
			return r.BirthDate.Format("2006-01-02")
		}
		return r.cells[column]
	case ColReleasedLoan:
		return FormatAmount(r.Loan.Released)
	case ColReleasedBenefit:
		return FormatAmount(r.Benefit.Released)
	case ColReleasedCard:
		return FormatAmount(r.Card.Released)
	case ColCommissionLoan:
		return FormatAmount(r.Loan.Commission)
	case ColCommissionBenefit:
		return FormatAmount(r.Benefit.Commission)
	case ColCommissionCard:
		return FormatAmount(r.Card.Commission)
	case ColInstallmentLoan:
		return FormatAmount(r.Loan.Installment)
	case ColInstallmentBenefit:
		return FormatAmount(r.Benefit.Installment)
	case ColInstallmentCard:
		return FormatAmount(r.Card.Installment)
	case ColBankLoan:
		return r.Loan.Bank
	case ColBankBenefit:
		return r.Benefit.Bank
	case ColBankCard:
		return r.Card.Bank
	case ColTermLoan:
		return r.Loan.Term
	case ColTermBenefit:
		return r.Benefit.Term
	case ColTermCard:
		return r.Card.Term
	case ColCampaign:
		return r.Campaign
	default:
		return r.Field(column)
	}
}
