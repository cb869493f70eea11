package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/JonMunkholm/sheetflow/internal/core"
)

// Encoding names reported by DecodeText.
const (
	EncodingUTF8   = "utf-8"
	EncodingUTF16  = "utf-16"
	EncodingLatin1 = "iso-8859-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText turns file bytes into text. UTF-16 is recognized by its byte
// order mark; otherwise UTF-8 is tried first and ISO-8859-1, which accepts
// any byte sequence, is the fallback. A leading UTF-8 BOM is dropped.
func DecodeText(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", EncodingUTF16, err
		}
		return string(out), EncodingUTF16, nil
	case utf8.Valid(data):
		return string(bytes.TrimPrefix(data, bomUTF8)), EncodingUTF8, nil
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", EncodingLatin1, err
	}
	return string(out), EncodingLatin1, nil
}

// ReadText reads and decodes a delimited text file.
func ReadText(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	text, enc, err := DecodeText(data)
	if err != nil {
		return "", enc, fmt.Errorf("decode %s: %w", enc, err)
	}
	return text, enc, nil
}

// ParseDelimited parses text into a grid of string cells. Rows may have
// different lengths; quotes follow the usual CSV rules but stray quotes
// inside fields are kept literally.
func ParseDelimited(text string, sep rune) (core.Grid, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var grid core.Grid
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse delimited text: %w", err)
		}
		row := make(core.Row, len(record))
		for i, v := range record {
			row[i] = v
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// ReadCSV reads a delimited file into a grid of string cells.
func ReadCSV(path string, sep rune) (core.Grid, string, error) {
	text, enc, err := ReadText(path)
	if err != nil {
		return nil, enc, err
	}
	grid, err := ParseDelimited(text, sep)
	return grid, enc, err
}
