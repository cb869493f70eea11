// Package core provides the schema-driven engine that classifies tabular
// files and rewrites them as normalized delimited text.
//
// This package holds all domain logic independent of where files come from
// or where output goes. Grids are handed in by callers (see internal/source)
// and output is handed to a [Sink]; the package itself only reads the schema
// registry and replacement map files.
//
// # Architecture
//
//   - Registry: the ordered per-type column contracts, loaded once and
//     read-only afterwards. Declaration order is the tie-break for every
//     lookup.
//   - Classifier: assigns an unlabeled grid to a type, by filename prefix
//     first and header structure second.
//   - Transformer: skip rows, header promotion, column-count check,
//     positional rename, date and number normalization.
//   - ColumnValidator: header check for text that is already delimited.
//   - Substitutor: literal replacements and separator conversion on text.
//   - TableWriter: delimited serialization.
//   - Service: runs a batch through all of the above.
//
// # Schema Registry
//
// A registry file maps type ids to a column list or a structured object:
//
//	{
//	  "CLI": ["CODIGO", "NOMBRE", "*"],
//	  "VTA": {"columnas": ["FECHA", "MONTO"], "fechas_numericas": ["FECHA"]}
//	}
//
// "*" as the last column accepts any number of extra trailing columns.
//
// # Batches
//
// Within one run each type is assigned to at most one file. The
// [BatchContext] records which types are taken; a type is committed only
// after its file's output was written, so a file that fails midway never
// blocks a later file of the same type. Batches are strictly sequential.
//
// # Column Names
//
// Header names are compared with [NamesMatch]: if either name is shorter
// than six characters the full names must match, otherwise only the first
// six. Case is ignored.
//
// # Error Handling
//
// Every error is scoped to a single file; nothing here aborts a run. Errors
// are typed (see errors.go) and mapped to operator codes with [MapError]:
//
//   - SCH001: Schema registry unavailable
//   - CLS001-CLS002: Classification failures
//   - COL001-COL002: Column count and name mismatches
//   - ENC001: Corrupt text encoding
//   - FILE001-FILE003: Empty, headerless or unreadable files
package core
