package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"
)

// TableWriter serializes tables as delimited text: header first, minimal
// quoting, "\n" line endings.
type TableWriter struct {
	sep rune
}

// NewTableWriter creates a writer for a single-rune separator.
func NewTableWriter(separator string) (*TableWriter, error) {
	r, size := utf8.DecodeRuneInString(separator)
	if size == 0 || size != len(separator) || r == utf8.RuneError {
		return nil, fmt.Errorf("separator %q must be a single character", separator)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return nil, fmt.Errorf("separator %q is not allowed", separator)
	}
	return &TableWriter{sep: r}, nil
}

// Write streams t to w.
func (tw *TableWriter) Write(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = tw.sep

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render returns t as text.
func (tw *TableWriter) Render(t Table) (string, error) {
	var buf bytes.Buffer
	if err := tw.Write(&buf, t); err != nil {
		return "", err
	}
	return buf.String(), nil
}
