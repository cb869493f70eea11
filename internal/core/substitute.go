package core

import (
	"fmt"
	"os"
	"strings"
)

// Replacement is one literal substitution rule.
type Replacement struct {
	From string
	To   string
}

// SubstitutionStats counts what Apply changed.
type SubstitutionStats struct {
	Substitutions         int
	SeparatorReplacements int
}

// Substitutor applies literal replacements and separator conversion to
// serialized text.
type Substitutor struct {
	rules []Replacement
}

// NewSubstitutor creates a substitutor. Rules with an empty source are dropped.
func NewSubstitutor(rules []Replacement) *Substitutor {
	kept := make([]Replacement, 0, len(rules))
	for _, r := range rules {
		if r.From == "" {
			continue
		}
		kept = append(kept, r)
	}
	return &Substitutor{rules: kept}
}

// Rules returns the active rules in application order.
func (s *Substitutor) Rules() []Replacement {
	return s.rules
}

// Apply strips one leading byte-order mark, then runs each rule over the
// whole text in list order, so a later rule sees the output of earlier ones.
// If inSep and outSep differ every inSep is then replaced with outSep. The
// separator pass does not understand quoting: separators inside quoted
// values are replaced too.
func (s *Substitutor) Apply(text, inSep, outSep string) (string, SubstitutionStats) {
	var stats SubstitutionStats
	text = strings.TrimPrefix(text, "\ufeff")

	for _, r := range s.rules {
		n := strings.Count(text, r.From)
		if n == 0 {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
		stats.Substitutions += n
	}

	if inSep != "" && outSep != "" && inSep != outSep {
		stats.SeparatorReplacements = strings.Count(text, inSep)
		text = strings.ReplaceAll(text, inSep, outSep)
	}
	return text, stats
}

// LoadReplacements reads an ordered replacement map from path (JSON object
// or YAML mapping by extension). On a missing or malformed source it returns
// an empty list and the error; callers skip substitution and continue.
func LoadReplacements(path string) ([]Replacement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	rules, err := ParseReplacements(data, formatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("replacements %s: %w", path, err)
	}
	return rules, nil
}

// ParseReplacements decodes a flat source→target mapping, keeping order.
func ParseReplacements(data []byte, format string) ([]Replacement, error) {
	entries, err := decodeOrdered(data, format)
	if err != nil {
		return nil, err
	}

	rules := make([]Replacement, 0, len(entries))
	for _, e := range entries {
		var to string
		if err := e.decode(&to); err != nil {
			return nil, fmt.Errorf("replacement %q: %w", e.key, err)
		}
		if e.key == "" {
			continue
		}
		rules = append(rules, Replacement{From: e.key, To: to})
	}
	return rules, nil
}
