// Package source reads input files into the shapes the core engine
// consumes and stores its output on the local filesystem.
package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetflow/internal/core"
)

// Built-in number formats that render a serial as a date or time.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// ReadXLSX reads the first worksheet of a workbook into a grid.
//
// Cells are typed the way a spreadsheet user sees them: text stays text
// (including digits stored as text), numbers become float64, booleans bool,
// and numbers formatted as dates become time.Time. Empty cells are nil.
func ReadXLSX(path string) (core.Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return readSheet(f, sheets[0])
}

func readSheet(f *excelize.File, sheet string) (core.Grid, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	r := &cellReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		r.date1904 = *props.Date1904
	}

	grid := make(core.Grid, len(rows))
	for i, row := range rows {
		out := make(core.Row, len(row))
		for j, raw := range row {
			if raw == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			out[j] = r.value(cell, raw)
		}
		grid[i] = out
	}
	return grid, nil
}

type cellReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool // style id -> renders as date
}

func (r *cellReader) value(cell, raw string) any {
	typ, err := r.f.GetCellType(r.sheet, cell)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return raw
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}

	// Number, date, unset or formula result: numeric if it parses.
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	if typ == excelize.CellTypeDate || r.isDateStyled(cell) {
		if t, err := excelize.ExcelDateToTime(v, r.date1904); err == nil {
			return t
		}
	}
	return v
}

func (r *cellReader) isDateStyled(cell string) bool {
	id, err := r.f.GetCellStyle(r.sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if isDate, ok := r.dateStyles[id]; ok {
		return isDate
	}

	isDate := false
	if style, err := r.f.GetStyle(id); err == nil {
		isDate = builtinDateFormats[style.NumFmt]
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	r.dateStyles[id] = isDate
	return isDate
}

// isDateFormatCode reports whether a custom number format renders dates.
// Quoted literals, escapes and bracketed sections (colors, locales,
// elapsed time) are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydmhs")
}
