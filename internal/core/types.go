package core

import (
	"strconv"
	"strings"
	"time"
)

// WildcardColumn marks that all columns after the mandatory prefix are
// unconstrained in name and count.
const WildcardColumn = "*"

// DefaultHeaderRow is the 1-based header row used when a schema does not set one.
const DefaultHeaderRow = 1

// Schema is the column contract for one record type.
type Schema struct {
	TypeID       string   // Unique key, also the filename prefix: "CLI"
	Columns      []string // Declared columns, may end with WildcardColumn
	Required     []string // Columns before the wildcard (all columns if none)
	Wildcard     bool     // Extra trailing columns allowed
	NumericDates []string // Required columns normalized to YYYYMMDD
	SkipRows     []int    // 1-based rows removed before header interpretation
	HeaderRow    int      // 1-based row holding column names
}

// IsNumericDate reports whether the named column is a numeric date column.
func (s Schema) IsNumericDate(column string) bool {
	for _, c := range s.NumericDates {
		if c == column {
			return true
		}
	}
	return false
}

// countMatches applies the column-count rule: at least len(Required) with a
// wildcard, exactly len(Required) without.
func (s Schema) countMatches(n int) bool {
	if s.Wildcard {
		return n >= len(s.Required)
	}
	return n == len(s.Required)
}

// Row is one grid row of untyped cells: nil, string, float64, int, int64,
// bool or time.Time.
type Row []any

// Grid is the raw tabular content of one input file.
type Grid []Row

// Width returns the length of the widest row.
func (g Grid) Width() int {
	w := 0
	for _, r := range g {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Rectangular returns a copy of the grid with every row padded with nil to
// the grid width. Spreadsheet readers report a sheet's column count as its
// widest row, so header checks are made against this shape.
func (g Grid) Rectangular() Grid {
	w := g.Width()
	out := make(Grid, len(g))
	for i, r := range g {
		row := make(Row, w)
		copy(row, r)
		out[i] = row
	}
	return out
}

// Table is a normalized grid: named columns and string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// MatchMethod records how a file was assigned to its type.
type MatchMethod string

const (
	MatchByName      MatchMethod = "name"
	MatchByStructure MatchMethod = "structure"
)

// InputMode selects how input files are read.
type InputMode string

const (
	ModeXLSX InputMode = "xlsx" // spreadsheets read into grids
	ModeCSV  InputMode = "csv"  // delimited text parsed into string grids
	ModeText InputMode = "text" // delimited text validated and passed through
)

// FileResult is the outcome of processing one input file.
type FileResult struct {
	File          string      `json:"file"`
	TypeID        string      `json:"typeId,omitempty"`
	Method        MatchMethod `json:"method,omitempty"`
	Output        string      `json:"output,omitempty"`
	Rows          int         `json:"rows"`
	Columns       int         `json:"columns"`
	Substitutions int         `json:"substitutions"`
	DateFallbacks int         `json:"dateFallbacks"`

	SeparatorReplacements int `json:"separatorReplacements"`
	ErrorKind     string      `json:"errorKind,omitempty"`
	ErrorCode     string      `json:"errorCode,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// RunReport summarizes one batch run.
type RunReport struct {
	RunID      string       `json:"runId"`
	Mode       InputMode    `json:"mode"`
	Trigger    string       `json:"trigger,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Succeeded  []FileResult `json:"succeeded"`
	Rejected   []FileResult `json:"rejected"`
}

// Total returns the number of files seen by the run.
func (r RunReport) Total() int {
	return len(r.Succeeded) + len(r.Rejected)
}

// OK reports whether no file was rejected.
func (r RunReport) OK() bool {
	return len(r.Rejected) == 0
}

// CellText renders a cell as plain text without any normalization.
// Used for header names and for cells in columns the transformer leaves alone.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// FileStem returns the base name of a file without its final extension.
func FileStem(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
