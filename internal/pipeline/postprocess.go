package pipeline

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/konsi/campaign-filter/internal/domain"
)

// ConvaiSuffix replaces the team suffix of rows routed to the AI pipeline.
const ConvaiSuffix = "convai"

// postprocess reconciles strategy output into the final table.
func (p *Processor) postprocess(ctx context.Context, table *domain.Table, records []*domain.Record, cfg *domain.AppConfig, usage *domain.PriorUsage) *Result {
	_, span := tracer.Start(ctx, "pipeline.postprocess")
	defer span.End()

	if cfg.Agreement == domain.AgreementGovSP {
		zeroPriorUsage(records, usage)
	}

	if table.Has(domain.ColDocument) {
		before := len(records)
		records = dedupe(records)
		logStage("dedupe", before, len(records))
	}

	label := CampaignLabel(cfg, p.now())
	convai := assignLabels(records, label, cfg)

	out := domain.NewTable(outputColumns()...)
	commissions := make([]float64, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(domain.FinalColumns))
		for i, col := range domain.FinalColumns {
			row[i] = rec.Value(col)
		}
		out.Rows = append(out.Rows, row)
		commissions = append(commissions, rankingCommission(rec, cfg.Campaign))
	}

	span.SetAttributes(
		attribute.Int("output_rows", len(records)),
		attribute.Int("convai_rows", convai),
	)

	return &Result{
		Table:           out,
		Label:           label,
		OutputRows:      len(records),
		ConvaiRows:      convai,
		TotalCommission: floats.Sum(commissions),
	}
}

// zeroPriorUsage zeroes govsp benefit and card offers of enrollments that
// already consumed the product in the unfiltered table, whether or not the
// campaign computed that product.
func zeroPriorUsage(records []*domain.Record, usage *domain.PriorUsage) {
	for _, rec := range records {
		if usage.UsedBenefit(rec.Enrollment) {
			rec.Benefit.Released = 0
		}
		if usage.UsedCard(rec.Enrollment) {
			rec.Card.Released = 0
		}
	}
}

// dedupe keeps the first record of each document.
func dedupe(records []*domain.Record) []*domain.Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, rec := range records {
		if _, ok := seen[rec.Document]; ok {
			continue
		}
		seen[rec.Document] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// CampaignLabel is "{agreement}_{ddmmyyyy}_{campaign slug}".
func CampaignLabel(cfg *domain.AppConfig, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", cfg.Agreement, now.Format("02012006"), cfg.Campaign.Slug())
}

// assignLabels sets the Campanha label of every record and routes a seeded
// sample of floor(convai% of rows) to the convai suffix. It returns the
// number of convai rows.
func assignLabels(records []*domain.Record, label string, cfg *domain.AppConfig) int {
	for _, rec := range records {
		rec.Campaign = label + "_" + cfg.Team
	}

	n := ConvaiCount(cfg.Convai, len(records))
	if n == 0 {
		return 0
	}

	picked := make([]int, n)
	sampleuv.WithoutReplacement(picked, len(records), rand.NewPCG(ConvaiSeed, ConvaiSeed))
	for _, i := range picked {
		records[i].Campaign = label + "_" + ConvaiSuffix
	}
	return n
}

// ConvaiCount is floor(percent/100 * rows), bounded to [0, rows].
func ConvaiCount(percent float64, rows int) int {
	if percent <= 0 || rows == 0 {
		return 0
	}
	n := int(math.Floor(percent / 100 * float64(rows)))
	return max(0, min(n, rows))
}

// rankingCommission is the commission a campaign ranks rows by.
func rankingCommission(rec *domain.Record, campaign domain.CampaignType) float64 {
	var v float64
	switch campaign {
	case domain.CampaignNewLoan:
		v = rec.Loan.Commission
	case domain.CampaignBenefit:
		v = rec.Benefit.Commission
	case domain.CampaignCard:
		v = rec.Card.Commission
	case domain.CampaignBenefitAndCard:
		v = rec.CombinedCommission
	}
	if domain.IsMissing(v) {
		return 0
	}
	return v
}

// outputColumns lists the final schema under presentation names.
func outputColumns() []string {
	cols := make([]string, len(domain.FinalColumns))
	for i, col := range domain.FinalColumns {
		cols[i] = domain.OutputColumnName(col)
	}
	return cols
}
