// Package sqlast holds the dialect independent model used by the oracles:
// typed constants, expression nodes, an immutable SELECT builder, pivot rows,
// and a data driven printer.
package sqlast

import "math"

// DataType is the static type of a constant or expression.
type DataType int

const (
	// TypeNull is the type of an untyped NULL literal.
	TypeNull DataType = iota
	TypeBoolean
	TypeSmallInt
	TypeInt
	TypeBigInt
	TypeDecimal
	TypeFloat
	TypeDouble
	TypeText
	TypeDate
	TypeDatetime
)

var dataTypeNames = [...]string{
	TypeNull:     "NULL",
	TypeBoolean:  "BOOLEAN",
	TypeSmallInt: "SMALLINT",
	TypeInt:      "INT",
	TypeBigInt:   "BIGINT",
	TypeDecimal:  "DECIMAL",
	TypeFloat:    "FLOAT",
	TypeDouble:   "DOUBLE",
	TypeText:     "TEXT",
	TypeDate:     "DATE",
	TypeDatetime: "DATETIME",
}

// String returns the canonical upper-case type name.
func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return "UNKNOWN"
	}
	return dataTypeNames[t]
}

// IsInteger reports whether t is one of the fixed-width integer types.
func (t DataType) IsInteger() bool {
	switch t {
	case TypeSmallInt, TypeInt, TypeBigInt:
		return true
	default:
		return false
	}
}

// IsApprox reports whether t is a binary floating point type.
func (t DataType) IsApprox() bool {
	return t == TypeFloat || t == TypeDouble
}

// IsNumeric reports whether t takes part in arithmetic.
func (t DataType) IsNumeric() bool {
	return t.IsInteger() || t == TypeDecimal || t.IsApprox()
}

// IsTemporal reports whether t is a date or datetime.
func (t DataType) IsTemporal() bool {
	return t == TypeDate || t == TypeDatetime
}

// IntRange returns the inclusive bounds of an integer type.
func (t DataType) IntRange() (lo, hi int64, ok bool) {
	switch t {
	case TypeSmallInt:
		return math.MinInt16, math.MaxInt16, true
	case TypeInt:
		return math.MinInt32, math.MaxInt32, true
	case TypeBigInt:
		return math.MinInt64, math.MaxInt64, true
	default:
		return 0, 0, false
	}
}

// Promote returns the result type of an arithmetic operator over a and b.
// It returns TypeNull when the pair has no arithmetic meaning. Booleans
// promote like integers.
func Promote(a, b DataType) DataType {
	if a == TypeNull {
		return b
	}
	if b == TypeNull {
		return a
	}
	if a == TypeBoolean {
		a = TypeBigInt
	}
	if b == TypeBoolean {
		b = TypeBigInt
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return TypeNull
	}
	switch {
	case a == TypeDouble || b == TypeDouble:
		return TypeDouble
	case a == TypeFloat || b == TypeFloat:
		return TypeDouble
	case a == TypeDecimal || b == TypeDecimal:
		return TypeDecimal
	default:
		// Engines evaluate integer arithmetic in 64 bits.
		return TypeBigInt
	}
}
