package core

import (
	"fmt"
	"strings"
	"time"
)

// TransformStats counts what a transform did to one grid.
type TransformStats struct {
	SkippedRows   int
	Rows          int
	Columns       int
	DateColumns   int
	DateCells     int
	NumericCells  int
	DateFallbacks []*DateConversionFallback
}

// Transformer turns a classified grid into a normalized Table.
type Transformer struct {
	// DecimalSeparator replaces '.' in non-integral numbers outside date columns.
	DecimalSeparator string
}

// NewTransformer creates a transformer. An empty separator means ".".
func NewTransformer(decimalSep string) *Transformer {
	if decimalSep == "" {
		decimalSep = "."
	}
	return &Transformer{DecimalSeparator: decimalSep}
}

// Transform applies, in order: skip rows, header promotion, the column-count
// check, positional rename and per-column value normalization.
//
// Errors reject only this grid: ErrEmptyFile, ErrHeaderRowMissing or
// *ColumnCountError. Unconvertible dates are not errors; they are returned
// in stats.DateFallbacks and the cell keeps its original text.
func (t *Transformer) Transform(grid Grid, s Schema) (Table, TransformStats, error) {
	var stats TransformStats
	if len(grid) == 0 {
		return Table{}, stats, ErrEmptyFile
	}

	kept, skipped := skipRows(grid, s.SkipRows)
	stats.SkippedRows = skipped

	header, ok := headerIndex(kept, s.HeaderRow)
	if !ok {
		return Table{}, stats, fmt.Errorf("%s: header row %d: %w", s.TypeID, s.HeaderRow, ErrHeaderRowMissing)
	}

	body := make(Grid, 0, len(kept)-header)
	for _, r := range kept[header:] {
		body = append(body, r.row)
	}
	body = body.Rectangular()

	width := body.Width()
	if !s.countMatches(width) {
		return Table{}, stats, &ColumnCountError{
			TypeID:   s.TypeID,
			Expected: len(s.Required),
			Actual:   width,
			Wildcard: s.Wildcard,
		}
	}

	columns := make([]string, width)
	for i := range columns {
		if i < len(s.Required) {
			columns[i] = s.Required[i]
		} else {
			columns[i] = CellText(body[0][i])
		}
	}

	isDate := make([]bool, width)
	for i := range s.Required {
		if s.IsNumericDate(s.Required[i]) {
			isDate[i] = true
			stats.DateColumns++
		}
	}

	rows := make([][]string, 0, len(body)-1)
	for ri, r := range body[1:] {
		out := make([]string, width)
		for ci, cell := range r {
			if isDate[ci] {
				text, ok := formatDateCell(cell)
				if !ok {
					stats.DateFallbacks = append(stats.DateFallbacks, &DateConversionFallback{
						Column: columns[ci],
						Row:    ri + 1,
						Value:  text,
					})
				}
				stats.DateCells++
				out[ci] = text
				continue
			}
			if f, ok := toFloat(cell); ok {
				out[ci] = FormatNumber(f, t.DecimalSeparator)
				stats.NumericCells++
				continue
			}
			out[ci] = CellText(cell)
		}
		rows = append(rows, out)
	}

	stats.Rows = len(rows)
	stats.Columns = width
	return Table{Columns: columns, Rows: rows}, stats, nil
}

// numberedRow is a grid row with its original 1-based position.
type numberedRow struct {
	pos int
	row Row
}

// skipRows removes the listed 1-based rows. Out-of-range and repeated
// indices are ignored.
func skipRows(grid Grid, skip []int) ([]numberedRow, int) {
	drop := make(map[int]bool, len(skip))
	for _, n := range skip {
		if n >= 1 && n <= len(grid) {
			drop[n] = true
		}
	}
	kept := make([]numberedRow, 0, len(grid)-len(drop))
	for i, r := range grid {
		if drop[i+1] {
			continue
		}
		kept = append(kept, numberedRow{pos: i + 1, row: r})
	}
	return kept, len(drop)
}

// headerIndex returns the index in kept of the first row whose original
// position is at or after headerRow.
func headerIndex(kept []numberedRow, headerRow int) (int, bool) {
	if headerRow <= 0 {
		headerRow = DefaultHeaderRow
	}
	for i, r := range kept {
		if r.pos >= headerRow {
			return i, true
		}
	}
	return 0, false
}

// formatDateCell normalizes one numeric-date cell. The bool is false when
// the value could not be converted and was kept as is.
func formatDateCell(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		if strings.TrimSpace(x) == "" {
			return "", true
		}
		return FormatDateText(x)
	case time.Time:
		return FormatCompactDate(x), true
	case bool:
		return CellText(x), false
	}
	if f, ok := toFloat(v); ok {
		return FormatNumericDate(f)
	}
	return CellText(v), false
}
