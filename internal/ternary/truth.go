// Package ternary folds expressions against a pivot row under Kleene's
// three-valued logic.
package ternary

import "sqlancer/internal/sqlast"

// Truth is a three-valued logical value.
type Truth uint8

const (
	Unknown Truth = iota
	False
	True
)

// String returns TRUE, FALSE or UNKNOWN.
func (t Truth) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// FromBool lifts a Go bool.
func FromBool(v bool) Truth {
	if v {
		return True
	}
	return False
}

// Not is Kleene negation; UNKNOWN stays UNKNOWN.
func Not(t Truth) Truth {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// And is Kleene conjunction: FALSE dominates, then UNKNOWN.
func And(a, b Truth) Truth {
	if a == False || b == False {
		return False
	}
	if a == Unknown || b == Unknown {
		return Unknown
	}
	return True
}

// Or is Kleene disjunction: TRUE dominates, then UNKNOWN.
func Or(a, b Truth) Truth {
	if a == True || b == True {
		return True
	}
	if a == Unknown || b == Unknown {
		return Unknown
	}
	return False
}

// Constant returns the boolean constant for t; UNKNOWN is a boolean NULL.
func (t Truth) Constant() sqlast.Constant {
	switch t {
	case True:
		return sqlast.Bool(true)
	case False:
		return sqlast.Bool(false)
	default:
		return sqlast.NullOf(sqlast.TypeBoolean)
	}
}
