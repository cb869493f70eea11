package core

// registry.go holds the per-type column contracts.
//
// Schemas are read from an external file that maps a type id to either a
// bare column list or a structured object:
//
//	{
//	  "CLI": ["CODIGO", "NOMBRE", "*"],
//	  "VTA": {
//	    "columnas": ["FECHA", "MONTO"],
//	    "fechas_numericas": ["FECHA"],
//	    "filas_omitir": [1, 2],
//	    "fila_nombres_columna": 3
//	  }
//	}
//
// Both shapes are normalized into Schema at load time. Declaration order is
// preserved and is the iteration order for every lookup: the first matching
// type wins, so the file order of the source is part of the contract.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is an ordered, read-only set of schemas.
// It is safe for concurrent reads once built.
type Registry struct {
	schemas  []Schema
	index    map[string]int
	problems []error
	degraded bool
}

// rawSchema is the structured object shape of a registry entry.
type rawSchema struct {
	Columns      []string `json:"columnas" yaml:"columnas"`
	NumericDates []string `json:"fechas_numericas" yaml:"fechas_numericas"`
	SkipRows     []int    `json:"filas_omitir" yaml:"filas_omitir"`
	HeaderRow    int      `json:"fila_nombres_columna" yaml:"fila_nombres_columna"`
}

// rawEntry is one undecoded registry or replacement entry in source order.
type rawEntry struct {
	key    string
	list   bool
	decode func(v any) error
}

// NewRegistry builds a registry from schemas in the given order.
// Entries that violate the schema invariants are skipped and reported by
// Problems; duplicate type ids keep the first declaration.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{index: make(map[string]int, len(schemas))}
	for _, s := range schemas {
		if err := r.add(s); err != nil {
			r.problems = append(r.problems, err)
		}
	}
	return r
}

// LoadRegistry reads a schema registry from path. The format follows the
// extension: .yaml/.yml as YAML, anything else as JSON.
//
// It never returns a nil registry. On a missing or malformed source it
// returns an empty, degraded registry together with a *SchemaLoadError, and
// callers continue without validation.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return degradedRegistry(), &SchemaLoadError{Path: path, Err: err}
	}
	reg, err := ParseRegistry(data, formatFromPath(path))
	if err != nil {
		return degradedRegistry(), &SchemaLoadError{Path: path, Err: err}
	}
	return reg, nil
}

// ParseRegistry decodes registry content in "json" or "yaml" format.
func ParseRegistry(data []byte, format string) (*Registry, error) {
	entries, err := decodeOrdered(data, format)
	if err != nil {
		return nil, err
	}

	r := &Registry{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		s, err := schemaFromEntry(e)
		if err == nil {
			err = r.add(s)
		}
		if err != nil {
			r.problems = append(r.problems, err)
		}
	}
	return r, nil
}

var errEmptySource = errors.New("empty schema source")

func degradedRegistry() *Registry {
	return &Registry{index: map[string]int{}, degraded: true}
}

func schemaFromEntry(e rawEntry) (Schema, error) {
	var raw rawSchema
	if e.list {
		if err := e.decode(&raw.Columns); err != nil {
			return Schema{}, fmt.Errorf("schema %s: %w", e.key, err)
		}
	} else if err := e.decode(&raw); err != nil {
		return Schema{}, fmt.Errorf("schema %s: %w", e.key, err)
	}

	return Schema{
		TypeID:       e.key,
		Columns:      raw.Columns,
		NumericDates: raw.NumericDates,
		SkipRows:     raw.SkipRows,
		HeaderRow:    raw.HeaderRow,
	}, nil
}

// add normalizes s and appends it.
func (r *Registry) add(s Schema) error {
	if s.TypeID == "" {
		return errors.New("schema with empty type id")
	}
	if _, exists := r.index[s.TypeID]; exists {
		return fmt.Errorf("schema %s: declared more than once", s.TypeID)
	}

	s.Required = s.Columns
	s.Wildcard = false
	for i, c := range s.Columns {
		if c != WildcardColumn {
			continue
		}
		if i != len(s.Columns)-1 {
			return fmt.Errorf("schema %s: wildcard must be the last column", s.TypeID)
		}
		s.Required = s.Columns[:i]
		s.Wildcard = true
	}

	dates := make([]string, 0, len(s.NumericDates))
	for _, d := range s.NumericDates {
		if !contains(s.Required, d) {
			r.problems = append(r.problems, fmt.Errorf("schema %s: numeric date column %q is not a declared column", s.TypeID, d))
			continue
		}
		dates = append(dates, d)
	}
	s.NumericDates = dates

	if s.HeaderRow <= 0 {
		s.HeaderRow = DefaultHeaderRow
	}

	r.index[s.TypeID] = len(r.schemas)
	r.schemas = append(r.schemas, s)
	return nil
}

// Get returns the schema for typeID.
func (r *Registry) Get(typeID string) (Schema, bool) {
	i, ok := r.index[typeID]
	if !ok {
		return Schema{}, false
	}
	return r.schemas[i], true
}

// All returns the schemas in declaration order.
func (r *Registry) All() []Schema {
	out := make([]Schema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	return len(r.schemas)
}

// Degraded reports whether the registry source could not be loaded or holds
// no schemas, in which case column validation is skipped.
func (r *Registry) Degraded() bool {
	return r.degraded || len(r.schemas) == 0
}

// Problems returns the entries skipped or trimmed while loading.
func (r *Registry) Problems() []error {
	return r.problems
}

// LookupByFilenamePrefix returns the first type whose id is a prefix of
// stem, in declaration order. Overlapping ids ("CL", "CLI") are not
// detected: the earlier declaration wins.
func (r *Registry) LookupByFilenamePrefix(stem string) (string, bool) {
	for _, s := range r.schemas {
		if strings.HasPrefix(stem, s.TypeID) {
			return s.TypeID, true
		}
	}
	return "", false
}

// RequiredColumns returns the mandatory column prefix, or nil for unknown ids.
func (r *Registry) RequiredColumns(typeID string) []string {
	s, _ := r.Get(typeID)
	return s.Required
}

// HasWildcard reports whether the type accepts extra trailing columns.
func (r *Registry) HasWildcard(typeID string) bool {
	s, _ := r.Get(typeID)
	return s.Wildcard
}

// NumericDateColumns returns the columns normalized to YYYYMMDD.
func (r *Registry) NumericDateColumns(typeID string) []string {
	s, _ := r.Get(typeID)
	return s.NumericDates
}

// SkipRows returns the 1-based rows removed before header interpretation.
func (r *Registry) SkipRows(typeID string) []int {
	s, _ := r.Get(typeID)
	return s.SkipRows
}

// HeaderRow returns the 1-based header row, DefaultHeaderRow for unknown ids.
func (r *Registry) HeaderRow(typeID string) int {
	s, ok := r.Get(typeID)
	if !ok {
		return DefaultHeaderRow
	}
	return s.HeaderRow
}

// decodeOrdered splits a top-level mapping into entries, keeping source order.
func decodeOrdered(data []byte, format string) ([]rawEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptySource
	}
	if format == "yaml" {
		return decodeOrderedYAML(data)
	}
	return decodeOrderedJSON(data)
}

func decodeOrderedJSON(data []byte) ([]rawEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("invalid json: top level must be an object")
	}

	var entries []rawEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid json at %q: %w", key, err)
		}
		entries = append(entries, rawEntry{
			key:    key,
			list:   bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")),
			decode: func(v any) error { return json.Unmarshal(raw, v) },
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return entries, nil
}

func decodeOrderedYAML(data []byte) ([]rawEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("invalid yaml: top level must be a mapping")
	}

	entries := make([]rawEntry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		val := root.Content[i+1]
		entries = append(entries, rawEntry{
			key:    root.Content[i].Value,
			list:   val.Kind == yaml.SequenceNode,
			decode: val.Decode,
		})
	}
	return entries, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
