package core

import (
	"strings"
	"unicode/utf8"
)

// compareWidth is the number of leading runes compared by the truncated
// column-name rule.
const compareWidth = 6

// NamesMatch applies the truncated-compare rule: when either name is shorter
// than six characters the full names are compared, otherwise only the first
// six. Both comparisons ignore case.
func NamesMatch(expected, actual string) bool {
	if utf8.RuneCountInString(expected) < compareWidth || utf8.RuneCountInString(actual) < compareWidth {
		return strings.EqualFold(expected, actual)
	}
	return strings.EqualFold(firstRunes(expected, compareWidth), firstRunes(actual, compareWidth))
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Candidate is one unclassified input in a batch.
type Candidate struct {
	Name string // raw filename, used for prefix matching
	Grid Grid
}

// Assignment is a classification decision.
type Assignment struct {
	TypeID string
	Method MatchMethod
}

// Classifier assigns files to schema types. It reads the registry and the
// batch's occupied set; it never marks types itself. Callers commit a type
// with BatchContext.Occupy once the file's output has been written.
type Classifier struct {
	registry *Registry
}

// NewClassifier creates a classifier over reg.
func NewClassifier(reg *Registry) *Classifier {
	return &Classifier{registry: reg}
}

// ByFilename is pass 1: the first type whose id prefixes the file stem,
// provided that type is not yet occupied.
func (c *Classifier) ByFilename(name string, batch *BatchContext) (Assignment, bool) {
	typeID, ok := c.registry.LookupByFilenamePrefix(FileStem(name))
	if !ok || batch.IsOccupied(typeID) {
		return Assignment{}, false
	}
	return Assignment{TypeID: typeID, Method: MatchByName}, true
}

// ByStructure is pass 2: scan types in registry order, skipping occupied
// ones, and return the first whose contract the grid's header satisfies.
func (c *Classifier) ByStructure(name string, grid Grid, batch *BatchContext) (Assignment, error) {
	for _, s := range c.registry.schemas {
		if batch.IsOccupied(s.TypeID) {
			continue
		}
		if MatchesStructure(s, grid) {
			return Assignment{TypeID: s.TypeID, Method: MatchByStructure}, nil
		}
	}
	return Assignment{}, &ClassificationError{File: name}
}

// Classify runs pass 1 then pass 2 for a single file.
func (c *Classifier) Classify(name string, grid Grid, batch *BatchContext) (Assignment, error) {
	if a, ok := c.ByFilename(name, batch); ok {
		return a, nil
	}
	return c.ByStructure(name, grid, batch)
}

// MatchesStructure reports whether the row at the schema's header row
// satisfies the column-count rule and every required position passes
// NamesMatch. The header width is the grid's rectangular width.
func MatchesStructure(s Schema, grid Grid) bool {
	idx := s.HeaderRow - 1
	if s.HeaderRow <= 0 {
		idx = DefaultHeaderRow - 1
	}
	if idx < 0 || idx >= len(grid) {
		return false
	}
	width := grid.Width()
	if !s.countMatches(width) {
		return false
	}

	header := grid[idx]
	for i, want := range s.Required {
		var cell any
		if i < len(header) {
			cell = header[i]
		}
		if !NamesMatch(want, CleanCell(CellText(cell))) {
			return false
		}
	}
	return true
}
