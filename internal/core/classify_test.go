package core

import (
	"errors"
	"testing"
)

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"identical", "CODIGO", "CODIGO", true},
		{"both six, case differs", "CODIGO", "codigo", true},
		{"first six equal", "NOMBRE", "NOMBRES", true},
		{"first six equal, long names", "DESCRIPCION", "DESCRIPTOR", true},
		{"first six differ", "DESCRIPCION", "DESCUENTO", false},
		{"short expected compares full", "MONTO", "MONTOS", false},
		{"short actual compares full", "MONTOS", "MONTO", false},
		{"short equal ignoring case", "mes", "MES", true},
		{"empty actual", "CODIGO", "", false},
		{"multibyte counted as runes", "AÑOFISCAL", "añofis", true},
		{"multibyte short", "AÑO", "AÑOS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NamesMatch(tt.expected, tt.actual); got != tt.want {
				t.Errorf("NamesMatch(%q, %q) = %v, want %v", tt.expected, tt.actual, got, tt.want)
			}
		})
	}
}

func headerGrid(cells ...any) Grid {
	return Grid{Row(cells), Row{"1", "2"}}
}

func TestMatchesStructure_NoWildcard(t *testing.T) {
	s := NewRegistry(Schema{TypeID: "ART", Columns: []string{"CODIGO", "DESCRIPCION"}}).All()[0]

	tests := []struct {
		name string
		grid Grid
		want bool
	}{
		{"exact", headerGrid("CODIGO", "DESCRIPCION"), true},
		{"truncated names", headerGrid("codigos", "DESCRIP."), true},
		{"extra column", headerGrid("CODIGO", "DESCRIPCION", "X"), false},
		{"missing column", headerGrid("CODIGO"), false},
		{"wrong name", headerGrid("CODIGO", "PRECIO"), false},
		{"nil header cell", headerGrid(nil, "DESCRIPCION"), false},
		{"empty grid", Grid{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesStructure(s, tt.grid); got != tt.want {
				t.Errorf("MatchesStructure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesStructure_Wildcard(t *testing.T) {
	s := NewRegistry(Schema{TypeID: "CLI", Columns: []string{"CODIGO", "NOMBRE", "*"}}).All()[0]

	tests := []struct {
		name string
		grid Grid
		want bool
	}{
		{"only required", headerGrid("CODIGO", "NOMBRE"), true},
		{"trailing extras ignored", headerGrid("CODIGO", "NOMBRES", "X", "Y"), true},
		{"trailing extras of any type", headerGrid("CODIGO", "NOMBRE", 3.0, nil), true},
		{"too few", headerGrid("CODIGO"), false},
		{"required mismatch", headerGrid("NOMBRE", "CODIGO", "X"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesStructure(s, tt.grid); got != tt.want {
				t.Errorf("MatchesStructure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesStructure_HeaderRowAndWidth(t *testing.T) {
	s := NewRegistry(Schema{
		TypeID:    "VTA",
		Columns:   []string{"FECHA", "MONTO"},
		SkipRows:  []int{1, 2},
		HeaderRow: 3,
	}).All()[0]

	grid := Grid{
		{"Reporte de ventas"},
		{},
		{"FECHA", "MONTO"},
		{45306.0, 10.5},
	}
	if !MatchesStructure(s, grid) {
		t.Error("want match on row 3")
	}

	// A wider data row widens the sheet; the header check sees 3 columns.
	wide := append(Grid{}, grid...)
	wide = append(wide, Row{1.0, 2.0, "nota"})
	if MatchesStructure(s, wide) {
		t.Error("want no match when the sheet is wider than the schema")
	}

	if MatchesStructure(s, grid[:2]) {
		t.Error("want no match when the header row is past the end")
	}
}

func TestClassifier_TwoPassExclusivity(t *testing.T) {
	reg := NewRegistry(
		Schema{TypeID: "CLI", Columns: []string{"CODIGO", "NOMBRE", "*"}},
		Schema{TypeID: "ART", Columns: []string{"CODIGO", "DESCRIPCION"}},
	)
	c := NewClassifier(reg)
	batch := NewBatchContext(ModeXLSX)

	clientes := headerGrid("CODIGO", "NOMBRE", "EMAIL")

	a, err := c.Classify("CLI_enero.xlsx", clientes, batch)
	if err != nil || a.TypeID != "CLI" || a.Method != MatchByName {
		t.Fatalf("Classify() = %+v, %v; want CLI by name", a, err)
	}
	batch.Occupy(a.TypeID, "CLI_enero.xlsx")

	// Same layout, unrelated name: CLI is taken and nothing else fits.
	_, err = c.Classify("export.xlsx", clientes, batch)
	var classErr *ClassificationError
	if !errors.As(err, &classErr) {
		t.Fatalf("error = %v, want *ClassificationError", err)
	}
	if classErr.File != "export.xlsx" {
		t.Errorf("File = %q", classErr.File)
	}

	// A name match on an occupied type falls through to structure.
	a, err = c.Classify("CLI_febrero.xlsx", headerGrid("CODIGO", "DESCRIPCION"), batch)
	if err != nil || a.TypeID != "ART" || a.Method != MatchByStructure {
		t.Errorf("Classify() = %+v, %v; want ART by structure", a, err)
	}
}

func TestClassifier_DoesNotOccupy(t *testing.T) {
	reg := NewRegistry(Schema{TypeID: "ART", Columns: []string{"CODIGO", "DESCRIPCION"}})
	c := NewClassifier(reg)
	batch := NewBatchContext(ModeXLSX)
	grid := headerGrid("CODIGO", "DESCRIPCION")

	for i := 0; i < 2; i++ {
		a, err := c.ByStructure("x.xlsx", grid, batch)
		if err != nil || a.TypeID != "ART" {
			t.Fatalf("attempt %d: ByStructure() = %+v, %v", i, a, err)
		}
	}
	if batch.IsOccupied("ART") {
		t.Error("classifier must not occupy types")
	}
}

func TestClassifier_RegistryOrderWins(t *testing.T) {
	reg := NewRegistry(
		Schema{TypeID: "B", Columns: []string{"CODIGO", "*"}},
		Schema{TypeID: "A", Columns: []string{"CODIGO", "NOMBRE"}},
	)
	a, err := NewClassifier(reg).ByStructure("f.xlsx", headerGrid("CODIGO", "NOMBRE"), NewBatchContext(ModeXLSX))
	if err != nil || a.TypeID != "B" {
		t.Errorf("ByStructure() = %+v, %v; want B (declared first)", a, err)
	}
}
