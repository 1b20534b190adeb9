package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTable is returned when a run receives a table without rows.
	ErrEmptyTable = errors.New("table is empty")

	// ErrMissingColumn is returned when a column required by a pipeline step is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// MissingColumn wraps ErrMissingColumn with the column name.
func MissingColumn(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

// Table is the raw tabular form of a client base: ordered column names and string cells.
// Rows may be shorter than Columns; absent cells read as "".
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries the column.
func (t *Table) Has(column string) bool {
	return t.Index(column) >= 0
}

// Append adds a row. The cells are copied.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(cells))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Cell returns the value at row i for the given column, or "" if absent.
func (t *Table) Cell(i int, column string) string {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return ""
	}
	row := t.Rows[i]
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Column returns all values of a column, or nil if the table does not carry it.
func (t *Table) Column(column string) []string {
	idx := t.Index(column)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Truncate returns a copy holding only the first n columns.
func (t *Table) Truncate(n int) *Table {
	if n >= len(t.Columns) {
		return t.Clone()
	}
	out := NewTable(t.Columns[:n]...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) > n {
			row = row[:n]
		}
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}
