// Package pipeline implements the campaign filter: prior-usage snapshot,
// global exclusion filters, strategy dispatch and final reconciliation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/rules"
	"github.com/konsi/campaign-filter/internal/strategy"
)

var tracer = otel.Tracer("campaign-filter/pipeline")

// ConvaiSeed seeds the convai sampling so repeated runs pick the same rows.
const ConvaiSeed = 42

// Processor runs the filter pipeline. It holds no per-run state and may be
// shared by concurrent runs; each run works on its own copy of the input.
type Processor struct {
	engine *rules.Engine
	now    func() time.Time
}

// NewProcessor creates a processor over a loaded rules engine.
func NewProcessor(engine *rules.Engine) *Processor {
	return &Processor{engine: engine, now: time.Now}
}

// Rules returns the row predicates the processor applies.
func (p *Processor) Rules() []*domain.RowRule {
	return p.engine.GetLoadedRules()
}

// WithClock replaces the clock used for the campaign label date.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Result is the output of one run.
type Result struct {
	// Table holds the final rows under their presentation column names.
	Table *domain.Table

	// Label is the campaign label without its team suffix.
	Label string

	InputRows  int
	OutputRows int
	ConvaiRows int

	// TotalCommission sums the ranking commission of the output rows.
	TotalCommission float64
}

// Process runs the pipeline over table with cfg. table is not modified.
func (p *Processor) Process(ctx context.Context, table *domain.Table, cfg *domain.AppConfig) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("campaign", string(cfg.Campaign)),
		attribute.String("agreement", cfg.Agreement),
		attribute.Int("input_rows", table.Len()),
	))
	defer span.End()

	result, err := p.process(ctx, table, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("output_rows", result.OutputRows),
		attribute.Int("convai_rows", result.ConvaiRows),
	)
	return result, nil
}

func (p *Processor) process(ctx context.Context, table *domain.Table, cfg *domain.AppConfig) (*Result, error) {
	if table.Len() == 0 {
		return nil, domain.ErrEmptyTable
	}

	strat, err := strategy.New(cfg.Campaign, p.engine)
	if err != nil {
		return nil, err
	}

	usage := p.snapshot(ctx, table, cfg)

	working := table.Truncate(domain.MaxInputColumns)
	if err := validateSchema(working, strat.RequiredColumns(cfg)); err != nil {
		return nil, err
	}

	records, err := p.prefilter(ctx, working, cfg, usage)
	if err != nil {
		return nil, fmt.Errorf("prefilter: %w", err)
	}

	records, err = p.applyStrategy(ctx, strat, &strategy.Input{
		Records: records,
		Config:  cfg,
		Usage:   usage,
		Columns: working.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", strat.Campaign(), err)
	}

	result := p.postprocess(ctx, working, records, cfg, usage)
	result.InputRows = table.Len()
	return result, nil
}

// snapshot records govsp prior usage over the full, unfiltered table.
func (p *Processor) snapshot(ctx context.Context, table *domain.Table, cfg *domain.AppConfig) *domain.PriorUsage {
	usage := domain.NewPriorUsage()
	if cfg.Agreement != domain.AgreementGovSP {
		return usage
	}

	_, span := tracer.Start(ctx, "pipeline.snapshot")
	defer span.End()

	if !table.Has(domain.ColEnrollment) {
		slog.Debug("prior usage snapshot skipped", "reason", "no enrollment column")
		return usage
	}

	for _, rec := range domain.RecordsFromTable(table) {
		if rec.WithdrawalTotal-rec.WithdrawalAvailable > 0 {
			usage.Benefit[rec.Enrollment] = struct{}{}
		}
		if rec.CardTotal-rec.CardAvailable > 0 {
			usage.Card[rec.Enrollment] = struct{}{}
		}
		if rec.LoanAvailable < 0 {
			usage.NegativeLoan[rec.Enrollment] = struct{}{}
		}
	}

	span.SetAttributes(
		attribute.Int("used_benefit", len(usage.Benefit)),
		attribute.Int("used_card", len(usage.Card)),
		attribute.Int("negative_loan", len(usage.NegativeLoan)),
	)
	slog.Debug("prior usage snapshot",
		"used_benefit", len(usage.Benefit),
		"used_card", len(usage.Card),
		"negative_loan", len(usage.NegativeLoan),
	)
	return usage
}

func (p *Processor) applyStrategy(ctx context.Context, strat strategy.Strategy, in *strategy.Input) ([]*domain.Record, error) {
	_, span := tracer.Start(ctx, "pipeline.strategy", trace.WithAttributes(
		attribute.String("strategy", string(strat.Campaign())),
		attribute.Int("banks", len(in.Config.Banks)),
	))
	defer span.End()

	before := len(in.Records)
	out, err := strat.Apply(in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logStage("strategy", before, len(out))
	return out, nil
}

// validateSchema fails on the first required column the table lacks.
func validateSchema(table *domain.Table, required []string) error {
	for _, col := range required {
		if !table.Has(col) {
			return domain.MissingColumn(col)
		}
	}
	return nil
}

func logStage(stage string, before, after int) {
	slog.Debug("pipeline stage",
		"stage", stage,
		"rows_before", before,
		"rows_after", after,
	)
}
