package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleJSON = `{
  "VTA": {
    "columnas": ["FECHA", "CLIENTE", "MONTO"],
    "fechas_numericas": ["FECHA"],
    "filas_omitir": [1, 2],
    "fila_nombres_columna": 3
  },
  "CLI": ["CODIGO", "NOMBRE", "*"],
  "ART": ["CODIGO", "DESCRIPCION"]
}`

const sampleYAML = `
VTA:
  columnas: [FECHA, CLIENTE, MONTO]
  fechas_numericas: [FECHA]
  filas_omitir: [1, 2]
  fila_nombres_columna: 3
CLI: [CODIGO, NOMBRE, "*"]
ART:
  - CODIGO
  - DESCRIPCION
`

func TestParseRegistry_BothFormats(t *testing.T) {
	for _, tc := range []struct {
		format string
		data   string
	}{
		{"json", sampleJSON},
		{"yaml", sampleYAML},
	} {
		t.Run(tc.format, func(t *testing.T) {
			reg, err := ParseRegistry([]byte(tc.data), tc.format)
			if err != nil {
				t.Fatalf("ParseRegistry() error = %v", err)
			}

			var ids []string
			for _, s := range reg.All() {
				ids = append(ids, s.TypeID)
			}
			if want := []string{"VTA", "CLI", "ART"}; !reflect.DeepEqual(ids, want) {
				t.Errorf("order = %v, want %v", ids, want)
			}

			if got := reg.RequiredColumns("CLI"); !reflect.DeepEqual(got, []string{"CODIGO", "NOMBRE"}) {
				t.Errorf("RequiredColumns(CLI) = %v", got)
			}
			if !reg.HasWildcard("CLI") || reg.HasWildcard("ART") {
				t.Error("HasWildcard mismatch")
			}
			if got := reg.NumericDateColumns("VTA"); !reflect.DeepEqual(got, []string{"FECHA"}) {
				t.Errorf("NumericDateColumns(VTA) = %v", got)
			}
			if got := reg.SkipRows("VTA"); !reflect.DeepEqual(got, []int{1, 2}) {
				t.Errorf("SkipRows(VTA) = %v", got)
			}
			if got := reg.HeaderRow("VTA"); got != 3 {
				t.Errorf("HeaderRow(VTA) = %d, want 3", got)
			}
			if got := reg.HeaderRow("CLI"); got != DefaultHeaderRow {
				t.Errorf("HeaderRow(CLI) = %d, want default", got)
			}
			if len(reg.Problems()) != 0 {
				t.Errorf("Problems() = %v", reg.Problems())
			}
		})
	}
}

func TestRegistry_UnknownTypeFallbacks(t *testing.T) {
	reg := NewRegistry()

	if got := reg.RequiredColumns("NOPE"); len(got) != 0 {
		t.Errorf("RequiredColumns = %v, want empty", got)
	}
	if reg.HasWildcard("NOPE") {
		t.Error("HasWildcard = true, want false")
	}
	if got := reg.SkipRows("NOPE"); len(got) != 0 {
		t.Errorf("SkipRows = %v, want empty", got)
	}
	if got := reg.HeaderRow("NOPE"); got != 1 {
		t.Errorf("HeaderRow = %d, want 1", got)
	}
}

func TestRegistry_LookupByFilenamePrefix(t *testing.T) {
	reg := NewRegistry(
		Schema{TypeID: "CL", Columns: []string{"A"}},
		Schema{TypeID: "CLI", Columns: []string{"A"}},
		Schema{TypeID: "VTA", Columns: []string{"A"}},
	)

	tests := []struct {
		stem   string
		want   string
		wantOK bool
	}{
		{"VTA_enero", "VTA", true},
		{"CLI_2024", "CL", true}, // earlier declaration wins
		{"cli_2024", "", false},  // prefix match is case-sensitive
		{"ART", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := reg.LookupByFilenamePrefix(tt.stem)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("LookupByFilenamePrefix(%q) = (%q, %v), want (%q, %v)", tt.stem, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRegistry_MalformedEntries(t *testing.T) {
	data := `{
  "BAD1": ["A", "*", "B"],
  "BAD2": ["A", "*", "*"],
  "BAD3": 42,
  "OK": {"columnas": ["A", "B"], "fechas_numericas": ["B", "Z"]},
  "OK": ["dup"]
}`
	reg, err := ParseRegistry([]byte(data), "json")
	if err != nil {
		t.Fatalf("ParseRegistry() error = %v", err)
	}

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	if got := reg.NumericDateColumns("OK"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("NumericDateColumns(OK) = %v, want [B]", got)
	}
	// three malformed entries, one dropped date column, one duplicate
	if got := len(reg.Problems()); got != 5 {
		t.Errorf("Problems() = %d entries, want 5: %v", got, reg.Problems())
	}
}

func TestLoadRegistry_Degraded(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		reg, err := LoadRegistry(filepath.Join(dir, "missing.json"))
		var loadErr *SchemaLoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("error = %v, want *SchemaLoadError", err)
		}
		if reg == nil || !reg.Degraded() || reg.Len() != 0 {
			t.Errorf("want empty degraded registry, got %+v", reg)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte(`{"CLI": [`), 0o644); err != nil {
			t.Fatal(err)
		}
		reg, err := LoadRegistry(path)
		if Kind(err) != KindSchemaLoad {
			t.Errorf("Kind(err) = %q, want %q", Kind(err), KindSchemaLoad)
		}
		if !reg.Degraded() {
			t.Error("Degraded() = false, want true")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		if err := os.WriteFile(path, []byte(" \n"), 0o644); err != nil {
			t.Fatal(err)
		}
		reg, err := LoadRegistry(path)
		if Kind(err) != KindSchemaLoad {
			t.Errorf("Kind(err) = %q, want %q", Kind(err), KindSchemaLoad)
		}
		if !reg.Degraded() || reg.Len() != 0 {
			t.Errorf("Len() = %d, Degraded() = %v", reg.Len(), reg.Degraded())
		}
	})

	t.Run("empty mapping", func(t *testing.T) {
		path := filepath.Join(dir, "vacio.json")
		if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
			t.Fatal(err)
		}
		reg, err := LoadRegistry(path)
		if err != nil {
			t.Fatalf("LoadRegistry() error = %v", err)
		}
		if !reg.Degraded() {
			t.Error("Degraded() = false for a registry without schemas, want true")
		}
	})

	t.Run("top level array", func(t *testing.T) {
		path := filepath.Join(dir, "array.json")
		if err := os.WriteFile(path, []byte(`["CLI"]`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRegistry(path); err == nil {
			t.Error("want error for top level array")
		}
	})

	t.Run("yaml by extension", func(t *testing.T) {
		path := filepath.Join(dir, "esquemas.yaml")
		if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
			t.Fatal(err)
		}
		reg, err := LoadRegistry(path)
		if err != nil {
			t.Fatalf("LoadRegistry() error = %v", err)
		}
		if reg.Degraded() || reg.Len() != 3 {
			t.Errorf("Len() = %d, Degraded() = %v", reg.Len(), reg.Degraded())
		}
	})
}
