package dialect

import (
	"fmt"

	"sqlancer/internal/experr"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

// MySQL error numbers the filter matches by code.
const (
	errDataOutOfRange      = 1690
	errTruncatedWrongValue = 1292
	errDivisionByZero      = 1365
	errWrongFieldWithGroup = 1055
	errInvalidGroupFunc    = 1111
	errNonUniqTable        = 1066
)

// MySQL describes MySQL and TiDB.
func MySQL() *Dialect {
	return &Dialect{
		Name:   "mysql",
		Driver: "mysql",
		Printer: sqlast.PrinterOptions{
			IdentQuote:    "`",
			NullSafeEqual: "<=>",
			CastNames: map[sqlast.DataType]string{
				sqlast.TypeSmallInt: "SIGNED",
				sqlast.TypeInt:      "SIGNED",
				sqlast.TypeBigInt:   "SIGNED",
				sqlast.TypeDecimal:  "DECIMAL(12,2)",
				sqlast.TypeDouble:   "DOUBLE",
				sqlast.TypeText:     "CHAR",
				sqlast.TypeDate:     "DATE",
				sqlast.TypeDatetime: "DATETIME",
			},
			FuncNames: map[string]string{"LENGTH": "CHAR_LENGTH"},
		},
		Eval: ternary.Config{
			OnlyKnownTypes: true,
			Collation:      ternary.CollationCaseInsensitive,
		},
		Functions: commonFunctions(),
		ColumnTypes: []sqlast.DataType{
			sqlast.TypeBoolean, sqlast.TypeSmallInt, sqlast.TypeInt, sqlast.TypeBigInt,
			sqlast.TypeDecimal, sqlast.TypeDouble, sqlast.TypeText, sqlast.TypeDate, sqlast.TypeDatetime,
		},
		CastTargets: []sqlast.DataType{sqlast.TypeBigInt, sqlast.TypeText},
		TypeNames: map[sqlast.DataType]string{
			sqlast.TypeBoolean:  "BOOLEAN",
			sqlast.TypeSmallInt: "SMALLINT",
			sqlast.TypeInt:      "INT",
			sqlast.TypeBigInt:   "BIGINT",
			sqlast.TypeDecimal:  "DECIMAL(12,2)",
			sqlast.TypeFloat:    "FLOAT",
			sqlast.TypeDouble:   "DOUBLE",
			sqlast.TypeText:     "VARCHAR(64)",
			sqlast.TypeDate:     "DATE",
			sqlast.TypeDatetime: "DATETIME",
		},
		NullSafeEqual:  true,
		AllowDivision:  true,
		SupportsIsTrue: true,
		RandomFunc:     "RAND()",
		ValidateSyntax: true,
		ErrorGroups: map[experr.Group]experr.Rules{
			experr.Expression: {
				Substrings: []string{"out of range", "truncated incorrect"},
				Codes:      []int{errDataOutOfRange, errTruncatedWrongValue},
			},
			experr.DivisionByZero: {
				Substrings: []string{"division by 0"},
				Codes:      []int{errDivisionByZero},
			},
			experr.Cast: {
				Substrings: []string{"incorrect", "cannot convert"},
				Codes:      []int{errTruncatedWrongValue},
			},
			experr.GroupBy: {
				Substrings: []string{"only_full_group_by", "isn't in group by"},
				Codes:      []int{errWrongFieldWithGroup},
			},
			experr.Having: {
				Substrings: []string{"unknown column"},
			},
			experr.Aggregate: {
				Substrings: []string{"invalid use of group function"},
				Codes:      []int{errInvalidGroupFunc},
			},
			experr.Join: {
				Codes: []int{errNonUniqTable},
			},
		},
		Introspection: schema.Introspection{
			TablesQuery: "SELECT TABLE_NAME, TABLE_TYPE FROM information_schema.TABLES " +
				"WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME",
			ColumnsQuery: func(table string) string {
				return fmt.Sprintf("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE FROM information_schema.COLUMNS "+
					"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = '%s' ORDER BY ORDINAL_POSITION", table)
			},
			ParseType: parseDeclaredType,
		},
		SetupDatabase: func(name string) []string {
			return []string{
				fmt.Sprintf("DROP DATABASE IF EXISTS %s", name),
				// general_ci folds ASCII case like the evaluator does
				fmt.Sprintf("CREATE DATABASE %s DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci", name),
				fmt.Sprintf("USE %s", name),
			}
		},
	}
}
