// filter-csv runs one campaign over local CSV bases and writes the export.
//
// Usage:
//
//	filter-csv -config campaign.json [-rules rules.json] [-out export.csv] base1.csv base2.csv ...
//
// The campaign file holds the same JSON document the API accepts as the
// "config" form field. Without -out the export is written to
// "{agreement}-{campaign}.csv" in the current directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/konsi/campaign-filter/internal/campaign"
	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/pipeline"
	"github.com/konsi/campaign-filter/internal/repository"
	"github.com/konsi/campaign-filter/internal/rules"
	"github.com/konsi/campaign-filter/internal/tabular"
)

func main() {
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "filter-csv: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("filter-csv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "campaign JSON file (required)")
	rulesPath := fs.String("rules", os.Getenv("FILTER_RULES_FILE"), "saved exclusion rules JSON file")
	outPath := fs.String("out", "", "export path (default {agreement}-{campaign}.csv)")
	debug := fs.Bool("debug", os.Getenv("FILTER_DEBUG") == "true", "log pipeline stages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if *configPath == "" {
		return errors.New("-config is required")
	}
	if fs.NArg() == 0 {
		return errors.New("at least one CSV file is required")
	}

	req, err := readRequest(*configPath)
	if err != nil {
		return err
	}

	var ruleSource domain.RuleSource
	if *rulesPath != "" {
		src, err := repository.OpenRuleFile(*rulesPath)
		if err != nil {
			return err
		}
		ruleSource = src
	}

	sources := make([]tabular.Source, 0, fs.NArg())
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		sources = append(sources, tabular.Source{Name: filepath.Base(path), Reader: f})
	}

	base, err := tabular.Load(sources...)
	if err != nil {
		return err
	}

	cfg, err := campaign.NewAssembler(ruleSource).Build(ctx, req, base)
	if err != nil {
		return err
	}

	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := pipeline.NewProcessor(engine).Process(ctx, base, cfg)
	if err != nil {
		return err
	}

	out := *outPath
	if out == "" {
		out = tabular.FileName(cfg.Agreement, cfg.Campaign)
	}
	if err := writeExport(out, result.Table); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d of %d rows, %d convai, total commission %.2f\n",
		out, result.OutputRows, result.InputRows, result.ConvaiRows, result.TotalCommission)
	return nil
}

func readRequest(path string) (*domain.CampaignRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req domain.CampaignRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid campaign file %s: %w", path, err)
	}
	return &req, nil
}

func writeExport(path string, table *domain.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tabular.Write(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
