package dialect

import (
	"fmt"
	"path/filepath"
	"strings"

	"sqlancer/internal/experr"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

// sqliteMismatch is SQLITE_MISMATCH, the result code for a datatype mismatch.
const sqliteMismatch = 20

// SQLite describes SQLite. DECIMAL is left out of the column types since
// SQLite stores it with REAL affinity and folds it as a float.
func SQLite() *Dialect {
	return &Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		Printer: sqlast.PrinterOptions{
			IdentQuote:    `"`,
			NullSafeEqual: "IS",
			CastNames: map[sqlast.DataType]string{
				sqlast.TypeBoolean:  "INTEGER",
				sqlast.TypeSmallInt: "INTEGER",
				sqlast.TypeInt:      "INTEGER",
				sqlast.TypeBigInt:   "INTEGER",
				sqlast.TypeFloat:    "REAL",
				sqlast.TypeDouble:   "REAL",
				sqlast.TypeText:     "TEXT",
			},
		},
		Eval: ternary.Config{
			OnlyKnownTypes:     true,
			Collation:          ternary.CollationBinary,
			Division:           ternary.DivisionTruncate,
			DivisionByZeroNull: true,
		},
		Functions: commonFunctions(),
		ColumnTypes: []sqlast.DataType{
			sqlast.TypeBoolean, sqlast.TypeSmallInt, sqlast.TypeInt, sqlast.TypeBigInt,
			sqlast.TypeDouble, sqlast.TypeText,
		},
		CastTargets: []sqlast.DataType{sqlast.TypeBigInt, sqlast.TypeText},
		TypeNames: map[sqlast.DataType]string{
			sqlast.TypeBoolean:  "BOOLEAN",
			sqlast.TypeSmallInt: "SMALLINT",
			sqlast.TypeInt:      "INT",
			sqlast.TypeBigInt:   "BIGINT",
			sqlast.TypeDouble:   "DOUBLE",
			sqlast.TypeText:     "TEXT",
		},
		NullSafeEqual:  true,
		AllowDivision:  true,
		SupportsIsTrue: true,
		RandomFunc:     "RANDOM()",
		BoolAsInt:      true,
		ErrorGroups: map[experr.Group]experr.Rules{
			experr.Expression: {
				Substrings: []string{"integer overflow"},
			},
			experr.Aggregate: {
				Substrings: []string{"integer overflow", "misuse of aggregate"},
			},
			experr.GroupBy: {
				Substrings: []string{"aggregate functions are not allowed in the group by clause"},
			},
			experr.Having: {
				Substrings: []string{"a group by clause is required before having"},
			},
			experr.Join: {
				Substrings: []string{"ambiguous column name"},
			},
			experr.Cast: {
				Codes: []int{sqliteMismatch},
			},
		},
		Introspection: schema.Introspection{
			TablesQuery: "SELECT name, type FROM sqlite_master " +
				"WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name",
			ColumnsQuery: func(table string) string {
				return fmt.Sprintf(`SELECT name, type, CASE WHEN "notnull" = 0 THEN 'YES' ELSE 'NO' END `+
					"FROM pragma_table_info('%s') ORDER BY cid", table)
			},
			ParseType: parseDeclaredType,
		},
		WorkerDSN: sqliteWorkerDSN,
	}
}

// sqliteWorkerDSN suffixes the file name of dsn with _w<worker>, keeping
// the file: scheme and the query parameters. A shared-cache :memory:
// database becomes a named in-memory one; a private one is already per
// connection and is left alone.
//
//	file:/tmp/fuzz.db?cache=shared  ->  file:/tmp/fuzz_w1.db?cache=shared
//	file::memory:?cache=shared      ->  file:sqlancer_w1?mode=memory&cache=shared
func sqliteWorkerDSN(dsn string, worker int) string {
	path, query, hasQuery := strings.Cut(dsn, "?")
	scheme := ""
	if rest, ok := strings.CutPrefix(path, "file:"); ok {
		scheme, path = "file:", rest
	}
	if path == ":memory:" && strings.Contains(query, "cache=shared") {
		return fmt.Sprintf("file:sqlancer_w%d?mode=memory&%s", worker, query)
	}
	if path == "" || path == ":memory:" {
		return dsn
	}
	ext := filepath.Ext(path)
	out := scheme + fmt.Sprintf("%s_w%d%s", strings.TrimSuffix(path, ext), worker, ext)
	if hasQuery {
		out += "?" + query
	}
	return out
}
