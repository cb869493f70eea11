package core

// errors.go defines the rejection taxonomy. Every error here is scoped to a
// single file (or, for SchemaLoadError, degrades the run) and is never
// process-fatal. Callers inspect them with errors.As or Kind.

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra detail.
var (
	ErrEmptyFile        = errors.New("empty file")
	ErrHeaderRowMissing = errors.New("header row missing")
	ErrUnknownType      = errors.New("unknown type")
)

// SchemaLoadError reports a missing or malformed schema registry source.
// The registry falls back to empty and validation is skipped.
type SchemaLoadError struct {
	Path string
	Err  error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("schema load %s: %v", e.Path, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// ClassificationError reports a file that matches no available contract.
type ClassificationError struct {
	File   string
	Reason string
	Err    error // ErrUnknownType when the type was named but not registered
}

func (e *ClassificationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("classification failed for %s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("classification failed for %s: no schema matches", e.File)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ColumnCountError reports a header whose width breaks the contract.
type ColumnCountError struct {
	TypeID   string
	Expected int
	Actual   int
	Wildcard bool
}

func (e *ColumnCountError) Error() string {
	if e.Wildcard {
		return fmt.Sprintf("column count for %s: found %d, want at least %d", e.TypeID, e.Actual, e.Expected)
	}
	return fmt.Sprintf("column count for %s: found %d, want %d", e.TypeID, e.Actual, e.Expected)
}

// ColumnNameMismatch reports a failed positional truncated compare.
// Position is 1-based.
type ColumnNameMismatch struct {
	TypeID   string
	Position int
	Expected string
	Actual   string
}

func (e *ColumnNameMismatch) Error() string {
	return fmt.Sprintf("column name for %s at position %d: expected %q, found %q",
		e.TypeID, e.Position, e.Expected, e.Actual)
}

// CorruptEncodingError reports a known mis-decoded byte sequence in text.
// The file must be regenerated with the correct encoding.
type CorruptEncodingError struct {
	Marker string
}

func (e *CorruptEncodingError) Error() string {
	return fmt.Sprintf("corrupt encoding: found %q, file must be regenerated", e.Marker)
}

// DateConversionFallback is a warning: a date cell could not be converted
// and its original text was kept. Row is 1-based within the data rows.
type DateConversionFallback struct {
	Column string
	Row    int
	Value  string
}

func (e *DateConversionFallback) Error() string {
	return fmt.Sprintf("date conversion fallback in %s row %d: kept %q", e.Column, e.Row, e.Value)
}

// IOError reports an unreadable or unwritable file.
type IOError struct {
	Op   string // "read", "write", "list", "clean", "mkdir"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Error kinds reported to collaborators.
const (
	KindSchemaLoad      = "schema_load"
	KindClassification  = "classification"
	KindColumnCount     = "column_count"
	KindColumnName      = "column_name"
	KindCorruptEncoding = "corrupt_encoding"
	KindDateFallback    = "date_fallback"
	KindIO              = "io"
	KindEmptyFile       = "empty_file"
	KindHeaderRow       = "header_row"
	KindOther           = "other"
)

// Kind names the taxonomy category of err.
func Kind(err error) string {
	var (
		schemaErr *SchemaLoadError
		classErr  *ClassificationError
		countErr  *ColumnCountError
		nameErr   *ColumnNameMismatch
		encErr    *CorruptEncodingError
		dateErr   *DateConversionFallback
		ioErr     *IOError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &schemaErr):
		return KindSchemaLoad
	case errors.As(err, &classErr), errors.Is(err, ErrUnknownType):
		return KindClassification
	case errors.As(err, &countErr):
		return KindColumnCount
	case errors.As(err, &nameErr):
		return KindColumnName
	case errors.As(err, &encErr):
		return KindCorruptEncoding
	case errors.As(err, &dateErr):
		return KindDateFallback
	case errors.Is(err, ErrEmptyFile):
		return KindEmptyFile
	case errors.Is(err, ErrHeaderRowMissing):
		return KindHeaderRow
	case errors.As(err, &ioErr):
		return KindIO
	default:
		return KindOther
	}
}
