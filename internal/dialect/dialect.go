// Package dialect holds the per-engine data the core is driven by: how
// literals and operators are spelled, which functions and types exist,
// which errors are expected and how the catalog is read.
package dialect

import (
	"fmt"
	"strings"

	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

// Dialect is data only. The oracles never branch on its name.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver string

	Printer        sqlast.PrinterOptions
	Eval           ternary.Config
	Functions      []generator.FuncSig
	ColumnTypes    []sqlast.DataType
	CastTargets    []sqlast.DataType
	TypeNames      map[sqlast.DataType]string
	NullSafeEqual  bool
	AllowDivision  bool
	SupportsIsTrue bool
	RandomFunc     string
	// BoolAsInt makes the comparator read true/false as 1/0.
	BoolAsInt bool
	// ValidateSyntax runs generated statements through the MySQL parser
	// before execution.
	ValidateSyntax bool

	ErrorGroups   map[experr.Group]experr.Rules
	Introspection schema.Introspection
	// SetupDatabase returns the statements that give a worker an empty
	// database. It is nil when the DSN already points at a private store.
	SetupDatabase func(name string) []string
	// WorkerDSN rewrites a shared DSN into one private to worker, for
	// engines where a database is a file rather than a server namespace.
	WorkerDSN func(dsn string, worker int) string
}

// SessionDSN returns the DSN a worker opens. With more than one worker and
// no server-side database per worker, each gets its own store.
func (d *Dialect) SessionDSN(dsn string, worker, workers int) string {
	if workers <= 1 || d.WorkerDSN == nil {
		return dsn
	}
	return d.WorkerDSN(dsn, worker)
}

// NewPrinter returns the dialect's printer.
func (d *Dialect) NewPrinter() *sqlast.BasePrinter {
	return sqlast.NewPrinter(d.Printer)
}

// Registry freezes the dialect's expected-error groups.
func (d *Dialect) Registry() *experr.Registry {
	return experr.NewRegistry(d.ErrorGroups)
}

// Evaluator returns an evaluator for the dialect with the run's choice of
// OnlyKnownTypes.
func (d *Dialect) Evaluator(onlyKnownTypes bool) *ternary.Evaluator {
	cfg := d.Eval
	cfg.OnlyKnownTypes = onlyKnownTypes
	return ternary.New(cfg)
}

// GeneratorOptions binds the dialect data to generator limits.
func (d *Dialect) GeneratorOptions(maxDepth, maxColumns int) generator.Options {
	return generator.Options{
		MaxDepth:      maxDepth,
		MaxColumns:    maxColumns,
		ColumnTypes:   append([]sqlast.DataType(nil), d.ColumnTypes...),
		CastTargets:   append([]sqlast.DataType(nil), d.CastTargets...),
		Functions:     append([]generator.FuncSig(nil), d.Functions...),
		TypeNames:     d.TypeNames,
		NullSafeEqual: d.NullSafeEqual,
		AllowDivision: d.AllowDivision,
	}
}

// ByName returns a built-in dialect.
func ByName(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "tidb", "":
		return MySQL(), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

// commonFunctions are spelled the same way by every built-in dialect.
func commonFunctions() []generator.FuncSig {
	poly := sqlast.TypeNull
	return []generator.FuncSig{
		{Name: "COALESCE", Args: []sqlast.DataType{poly, poly}, Ret: poly, Variadic: true},
		{Name: "IFNULL", Args: []sqlast.DataType{poly, poly}, Ret: poly},
		{Name: "NULLIF", Args: []sqlast.DataType{poly, poly}, Ret: poly},
		{Name: "ABS", Args: []sqlast.DataType{poly}, Ret: poly, NumericOnly: true},
		{Name: "UPPER", Args: []sqlast.DataType{sqlast.TypeText}, Ret: sqlast.TypeText},
		{Name: "LOWER", Args: []sqlast.DataType{sqlast.TypeText}, Ret: sqlast.TypeText},
		{Name: "LENGTH", Args: []sqlast.DataType{sqlast.TypeText}, Ret: sqlast.TypeBigInt},
	}
}

// parseDeclaredType maps a catalog type name onto a DataType.
func parseDeclaredType(declared string) (sqlast.DataType, bool) {
	t := strings.ToLower(strings.TrimSpace(declared))
	switch {
	case t == "tinyint(1)" || t == "boolean" || t == "bool":
		return sqlast.TypeBoolean, true
	case strings.HasPrefix(t, "smallint"):
		return sqlast.TypeSmallInt, true
	case strings.HasPrefix(t, "bigint"):
		return sqlast.TypeBigInt, true
	case strings.HasPrefix(t, "int") || strings.HasPrefix(t, "integer"):
		return sqlast.TypeInt, true
	case strings.HasPrefix(t, "decimal") || strings.HasPrefix(t, "numeric"):
		return sqlast.TypeDecimal, true
	case strings.HasPrefix(t, "float"):
		return sqlast.TypeFloat, true
	case strings.HasPrefix(t, "double") || t == "real":
		return sqlast.TypeDouble, true
	case strings.HasPrefix(t, "varchar") || strings.HasPrefix(t, "char") || t == "text":
		return sqlast.TypeText, true
	case t == "date":
		return sqlast.TypeDate, true
	case strings.HasPrefix(t, "datetime") || strings.HasPrefix(t, "timestamp"):
		return sqlast.TypeDatetime, true
	}
	return sqlast.TypeNull, false
}
