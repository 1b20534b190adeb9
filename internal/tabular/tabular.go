// Package tabular reads client bases from CSV uploads and writes campaign exports.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/konsi/campaign-filter/internal/domain"
)

// ExportSeparator is the field separator of campaign exports.
const ExportSeparator = ';'

// Source is one named CSV upload.
type Source struct {
	Name   string
	Reader io.Reader
}

// Read parses a comma-separated file with a header row. A leading byte
// order mark is stripped. A file without a header yields an empty table.
func Read(r io.Reader) (*domain.Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	table := domain.NewTable(header...)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if blank(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Load reads every source and concatenates the non-empty ones. Unreadable
// and empty sources are logged and skipped.
func Load(sources ...Source) (*domain.Table, error) {
	var tables []*domain.Table
	for _, src := range sources {
		t, err := Read(src.Reader)
		if err != nil {
			slog.Error("failed to load file", "file", src.Name, "error", err)
			continue
		}
		if t.Len() == 0 {
			slog.Warn("file is empty", "file", src.Name)
			continue
		}
		tables = append(tables, t)
	}
	return Concat(tables...)
}

// Concat appends the rows of tables under the union of their columns, in
// first-seen order. Cells a table does not carry become "".
func Concat(tables ...*domain.Table) (*domain.Table, error) {
	var columns []string
	seen := make(map[string]bool)
	total := 0
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, col := range t.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
		total += t.Len()
	}
	if total == 0 {
		return nil, domain.ErrEmptyTable
	}

	out := domain.NewTable(columns...)
	out.Rows = make([][]string, 0, total)
	for _, t := range tables {
		if t == nil {
			continue
		}
		positions := make([]int, len(columns))
		for i, col := range columns {
			positions[i] = t.Index(col)
		}
		for _, src := range t.Rows {
			row := make([]string, len(columns))
			for i, pos := range positions {
				if pos >= 0 && pos < len(src) {
					row[i] = src[pos]
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Write serializes t as ';'-separated UTF-8 with a byte order mark.
func Write(w io.Writer, t *domain.Table) error {
	encoded := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())

	writer := csv.NewWriter(encoded)
	writer.Comma = ExportSeparator

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(padded(row, len(t.Columns))); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return encoded.Close()
}

// FileName is the export file name of an agreement and campaign.
func FileName(agreement string, campaign domain.CampaignType) string {
	return fmt.Sprintf("%s-%s.csv", agreement, campaign)
}

func padded(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
