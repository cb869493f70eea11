package core

// validation.go checks already-delimited text against a known type's contract.
//
// Validation happens at two levels:
//  1. Encoding: the whole content is scanned for byte sequences left behind
//     by a wrong decode (UTF-8 read as Latin-1 and re-encoded, or lost
//     characters). Garbled header text makes name comparison meaningless, so
//     this runs first.
//  2. Header: the first line is split on the separator and compared to the
//     schema with the same truncated-compare rule the classifier uses.

import (
	"strings"
)

// corruptMarkers are mis-decoded sequences that mean the file must be
// regenerated with the right encoding.
var corruptMarkers = []string{
	"\ufffd",             // replacement character
	"\u00ef\u00bf\u00bd", // replacement character decoded as Latin-1
	"\u00c3\u00ad",       // í
	"\u00c3\u00b1",       // ñ
	"\u00c3\u00a1",       // á
	"\u00c3\u00a9",       // é
	"\u00c3\u00b3",       // ó
	"\u00c3\u00ba",       // ú
}

// FindCorruptMarker returns the first known mis-decoded sequence in content.
func FindCorruptMarker(content string) (string, bool) {
	for _, m := range corruptMarkers {
		if strings.Contains(content, m) {
			return m, true
		}
	}
	return "", false
}

// ColumnValidator validates the header line of delimited text.
type ColumnValidator struct {
	registry *Registry
}

// NewColumnValidator creates a validator over reg.
func NewColumnValidator(reg *Registry) *ColumnValidator {
	return &ColumnValidator{registry: reg}
}

// Validate checks content for typeID. A degraded or empty registry accepts
// everything.
// Errors: *CorruptEncodingError, ErrEmptyFile, *ClassificationError for an
// unknown type, *ColumnCountError and *ColumnNameMismatch.
func (v *ColumnValidator) Validate(typeID, content, separator string) error {
	if v.registry == nil || v.registry.Degraded() {
		return nil
	}

	if m, found := FindCorruptMarker(content); found {
		return &CorruptEncodingError{Marker: m}
	}

	s, ok := v.registry.Get(typeID)
	if !ok {
		return &ClassificationError{File: typeID, Reason: "unknown type " + typeID, Err: ErrUnknownType}
	}
	if len(s.Required) == 0 {
		return nil
	}

	content = strings.TrimPrefix(content, "\ufeff")
	if strings.TrimSpace(content) == "" {
		return ErrEmptyFile
	}

	fields := HeaderFields(content, separator)
	if !s.countMatches(len(fields)) {
		return &ColumnCountError{
			TypeID:   typeID,
			Expected: len(s.Required),
			Actual:   len(fields),
			Wildcard: s.Wildcard,
		}
	}

	for i, want := range s.Required {
		if !NamesMatch(want, fields[i]) {
			return &ColumnNameMismatch{
				TypeID:   typeID,
				Position: i + 1,
				Expected: want,
				Actual:   fields[i],
			}
		}
	}
	return nil
}

// HeaderFields splits the first line of content on separator and cleans
// each field.
func HeaderFields(content, separator string) []string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")
	line = strings.TrimPrefix(line, "\ufeff")

	if separator == "" {
		separator = ";"
	}
	parts := strings.Split(line, separator)
	for i, p := range parts {
		parts[i] = CleanCell(p)
	}
	return parts
}
