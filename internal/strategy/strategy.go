// Package strategy computes per-bank offers for each campaign type.
package strategy

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/rules"
)

// ErrUnknownStrategy is returned for a campaign type without a strategy.
var ErrUnknownStrategy = errors.New("no strategy for campaign type")

// Input is what a strategy consumes: the globally filtered records of one run.
type Input struct {
	Records []*domain.Record
	Config  *domain.AppConfig
	Usage   *domain.PriorUsage

	// Columns are the columns of the table the records came from.
	Columns []string
}

// Has reports whether the source table carries a column.
func (in *Input) Has(column string) bool {
	return slices.Contains(in.Columns, column)
}

// Strategy computes the offer fields of one campaign type.
//
// Apply walks the banks in list order; a row claimed by a bank for a product
// is skipped by every later bank for that product. The returned records are
// limited to rows meeting the minimum commission and sorted descending by the
// strategy's ranking amount.
type Strategy interface {
	Campaign() domain.CampaignType

	// RequiredColumns lists the input columns Apply cannot run without.
	RequiredColumns(cfg *domain.AppConfig) []string

	Apply(in *Input) ([]*domain.Record, error)
}

// New returns the strategy for a campaign type.
func New(campaign domain.CampaignType, engine *rules.Engine) (Strategy, error) {
	if engine == nil {
		return nil, fmt.Errorf("rules engine is required")
	}

	switch campaign {
	case domain.CampaignNewLoan:
		return &NewLoan{}, nil
	case domain.CampaignBenefit:
		return &Benefit{engine: engine}, nil
	case domain.CampaignCard:
		return &Card{engine: engine}, nil
	case domain.CampaignBenefitAndCard:
		return &Combined{engine: engine}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, campaign)
	}
}

// claims reports whether bank takes rec for a product not yet treated.
func claims(rec *domain.Record, bank *domain.BankConfig, treated bool) bool {
	if treated {
		return false
	}
	if bank.AppliesToWholeBase() {
		return true
	}
	return domain.ContainsFold(rec.Field(bank.ConditionalColumn), bank.ConditionalValue)
}

// conditionalColumns lists the columns the bank masks read.
func conditionalColumns(cfg *domain.AppConfig) []string {
	var cols []string
	for i := range cfg.Banks {
		if cfg.Banks[i].AppliesToWholeBase() {
			continue
		}
		if !slices.Contains(cols, cfg.Banks[i].ConditionalColumn) {
			cols = append(cols, cfg.Banks[i].ConditionalColumn)
		}
	}
	return cols
}

// round2 rounds a money value to cents, half to even. Missing stays missing.
func round2(v float64) float64 {
	if domain.IsMissing(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}

// claim stores a computed released amount and the derived fields of a bank.
// Installment is released over the installment coefficient, 0 without one.
func claim(offer *domain.Offer, bank *domain.BankConfig, released float64) {
	offer.Released = released
	if bank.InstallmentCoefficient != nil && *bank.InstallmentCoefficient != 0 {
		offer.Installment = round2(released / *bank.InstallmentCoefficient)
	} else {
		offer.Installment = 0
	}
	offer.Commission = round2(released * bank.CommissionRate())
	offer.Bank = bank.Bank
	offer.Term = strconv.Itoa(bank.Installments)
	offer.Treated = true
}

// rank keeps records whose commission meets threshold and sorts them
// descending by amount. Ties keep their input order.
func rank(records []*domain.Record, threshold float64, commission, amount func(*domain.Record) float64) []*domain.Record {
	kept := make([]*domain.Record, 0, len(records))
	for _, rec := range records {
		if commission(rec) >= threshold {
			kept = append(kept, rec)
		}
	}

	slices.SortStableFunc(kept, func(a, b *domain.Record) int {
		return cmp.Compare(amount(b), amount(a))
	})
	return kept
}

// filterIf narrows records through a catalog rule when every column it reads is present.
func filterIf(engine *rules.Engine, ruleID string, in *Input, records []*domain.Record) ([]*domain.Record, error) {
	cols, err := engine.Columns(ruleID)
	if err != nil {
		return nil, err
	}
	for _, col := range cols {
		if !in.Has(col) {
			return records, nil
		}
	}
	return engine.Filter(ruleID, records)
}
