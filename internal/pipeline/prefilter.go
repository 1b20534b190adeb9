package pipeline

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/konsi/campaign-filter/internal/domain"
)

var documentPunctuation = strings.NewReplacer(".", "", "-", "")

// birthDateLayouts are tried in order; day comes before month.
var birthDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// prefilter normalizes the working table and applies the global exclusion
// filters. Each step narrows the live rows; optional columns that are
// absent skip their step.
func (p *Processor) prefilter(ctx context.Context, table *domain.Table, cfg *domain.AppConfig, usage *domain.PriorUsage) ([]*domain.Record, error) {
	_, span := tracer.Start(ctx, "pipeline.prefilter")
	defer span.End()

	records := domain.RecordsFromTable(table)
	start := len(records)

	normalize(table, records)

	records = excludeKeywords(records, table, domain.ColDepartment, cfg.ExcludedDepartments)
	records = excludeKeywords(records, table, domain.ColBond, cfg.ExcludedBonds)
	records = excludeKeywords(records, table, domain.ColSecretariat, cfg.ExcludedSecretariats)

	if cfg.Cutoff != nil && table.Has(domain.ColBirthDate) && anyCell(records, domain.ColBirthDate) {
		before := len(records)
		records = filterBirthDate(records, *cfg.Cutoff)
		logStage("birth_date", before, len(records))
	}

	if table.Has(domain.ColLoanAvailable) {
		before := len(records)
		records = keep(records, func(r *domain.Record) bool {
			return r.LoanAvailable >= cfg.MinimumLoanMargin
		})
		logStage("minimum_loan_margin", before, len(records))
	}

	var err error
	switch cfg.Agreement {
	case domain.AgreementGovSP:
		before := len(records)
		if table.Has(domain.ColDepartment) {
			if records, err = p.engine.Filter(domain.RuleGovSPDepartment, records); err != nil {
				return nil, err
			}
		}
		records = keep(records, func(r *domain.Record) bool {
			return !usage.HasNegativeLoan(r.Enrollment)
		})
		logStage("govsp", before, len(records))

	case domain.AgreementGovMT:
		if table.Has(domain.ColCompulsoryAvailable) {
			before := len(records)
			if records, err = p.engine.Filter(domain.RuleGovMTCompulsory, records); err != nil {
				return nil, err
			}
			logStage("govmt", before, len(records))
		}
	}

	span.SetAttributes(
		attribute.Int("rows_before", start),
		attribute.Int("rows_after", len(records)),
	)
	return records, nil
}

// normalize title-cases client names and strips punctuation from documents.
func normalize(table *domain.Table, records []*domain.Record) {
	if table.Has(domain.ColClientName) {
		title := cases.Title(language.Und)
		for _, rec := range records {
			rec.Name = title.String(rec.Name)
		}
	}
	if table.Has(domain.ColDocument) {
		for _, rec := range records {
			rec.Document = documentPunctuation.Replace(rec.Document)
		}
	}
}

// excludeKeywords drops rows whose column contains any keyword, ignoring case.
func excludeKeywords(records []*domain.Record, table *domain.Table, column string, keywords []string) []*domain.Record {
	if !table.Has(column) || !slices.ContainsFunc(keywords, func(k string) bool { return k != "" }) {
		return records
	}

	before := len(records)
	records = keep(records, func(r *domain.Record) bool {
		return !domain.ContainsAnyFold(r.Field(column), keywords)
	})
	logStage("exclude_"+strings.ToLower(column), before, len(records))
	return records
}

// filterBirthDate parses birth dates day-first and keeps rows born on or
// after cutoff. Unparseable dates drop the row.
func filterBirthDate(records []*domain.Record, cutoff time.Time) []*domain.Record {
	return keep(records, func(r *domain.Record) bool {
		born, ok := ParseBirthDate(r.Cell(domain.ColBirthDate))
		if !ok {
			return false
		}
		r.BirthDate = born
		r.HasBirthDate = true
		return !born.Before(cutoff)
	})
}

// ParseBirthDate parses a day-first date, dropping any time of day.
func ParseBirthDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func anyCell(records []*domain.Record, column string) bool {
	for _, rec := range records {
		if strings.TrimSpace(rec.Cell(column)) != "" {
			return true
		}
	}
	return false
}

func keep(records []*domain.Record, pred func(*domain.Record) bool) []*domain.Record {
	out := records[:0:0]
	for _, rec := range records {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}
