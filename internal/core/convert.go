package core

// convert.go provides the cell conversions applied while normalizing a grid.
//
// These functions handle the messy reality of spreadsheet exports:
//   - Dates stored as day-count serials, as YYYYMMDD numbers, or as text
//   - Text dates in several layouts (US, EU-dotted, ISO, with or without time)
//   - Integral numbers that a reader hands back as floats (12.0)
//   - Excel formula prefixes (="value") and stray quotes in header cells

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// SerialEpoch is the origin of spreadsheet day-count serials.
var SerialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Numbers inside this inclusive range are already YYYYMMDD dates.
const (
	minFormattedDate = 10000101
	maxFormattedDate = 99991231
)

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339,
		"2006-01-02 15:04", "2006/01/02 15:04:05",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"1/2/2006 15:04:05", "01/02/2006 15:04:05",
		"Jan 2, 2006", "2 Jan 2006", "02-Jan-2006",
	}
)

// ParseDate parses a text date in any supported layout.
// Returns false if the string is empty or matches no layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// FormatCompactDate renders t as YYYYMMDD.
func FormatCompactDate(t time.Time) string {
	return t.Format("20060102")
}

// SerialToDate converts a day-count serial to a calendar date. The
// fractional part (time of day) is discarded. Returns false for NaN, Inf
// and serials that land outside years 1..9999.
func SerialToDate(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	days := math.Floor(v)
	// Beyond ±3.7M days the year leaves 1..9999 anyway; bail before int overflow.
	if days > 4e6 || days < -4e6 {
		return time.Time{}, false
	}
	t := SerialEpoch.AddDate(0, 0, int(days))
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// DateToSerial is the inverse of SerialToDate for whole days.
func DateToSerial(t time.Time) float64 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return float64((d.Unix() - SerialEpoch.Unix()) / 86400)
}

// FormatNumericDate normalizes a numeric date cell to YYYYMMDD.
//
// Values already inside [10000101, 99991231] are taken as formatted and
// truncated to their integer string; anything else is a day-count serial.
// When the serial cannot be converted the second return is false and the
// value is rendered as its integer string if integral, else as plain text.
func FormatNumericDate(v float64) (string, bool) {
	if v >= minFormattedDate && v <= maxFormattedDate {
		return strconv.FormatInt(int64(v), 10), true
	}
	if t, ok := SerialToDate(v); ok {
		return FormatCompactDate(t), true
	}
	if !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v) && math.Abs(v) < 1e18 {
		return strconv.FormatInt(int64(v), 10), false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), false
}

// FormatDateText normalizes a text date cell. Blank → "", an 8-digit
// string → unchanged, a parseable date → YYYYMMDD. Otherwise the trimmed
// original is returned with false.
func FormatDateText(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", true
	}
	if isEightDigits(trimmed) {
		return trimmed, true
	}
	if t, ok := ParseDate(trimmed); ok {
		return FormatCompactDate(t), true
	}
	return trimmed, false
}

// FormatNumber renders a numeric cell. Integral values have no fractional
// part; other values use decimalSep in place of '.'.
func FormatNumber(v float64, decimalSep string) string {
	if !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v) && math.Abs(v) < 1e18 {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if decimalSep != "" && decimalSep != "." {
		s = strings.Replace(s, ".", decimalSep, 1)
	}
	return s
}

// toFloat reports the numeric value of a cell, if it is a number.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}

func isEightDigits(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CleanCell removes common artifacts from a header cell:
// - Trims whitespace and a leading byte-order mark
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	// Remove leading '='
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	// Remove any surrounding quotes
	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
