package compare

import (
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"sqlancer/internal/sqlast"
)

// CanonOptions controls value canonicalization.
type CanonOptions struct {
	// RoundScale rounds non-integral numbers to this many fractional digits.
	// Zero keeps full precision.
	RoundScale int
	// BoolAsInt maps true/false spellings to 1/0.
	BoolAsInt bool
}

var numericPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Canonicalize normalizes one value so that equal values from different
// query shapes compare equal. It is idempotent.
func (o CanonOptions) Canonicalize(v Value) Value {
	if v.Null {
		return Value{Null: true}
	}
	s := v.S
	if numericPattern.MatchString(s) {
		return Value{S: o.canonicalNumber(s)}
	}
	if o.BoolAsInt {
		switch strings.ToLower(s) {
		case "true":
			return Value{S: "1"}
		case "false":
			return Value{S: "0"}
		}
	}
	return Value{S: norm.NFC.String(s)}
}

func (o CanonOptions) canonicalNumber(s string) string {
	if !strings.ContainsAny(s, ".eE") {
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimLeft(s, "+-")
		s = strings.TrimLeft(s, "0")
		if s == "" {
			return "0"
		}
		if neg {
			return "-" + s
		}
		return s
	}
	r, ok := new(big.Rat).SetString(strings.TrimPrefix(s, "+"))
	if !ok {
		return s
	}
	if o.RoundScale > 0 && !r.IsInt() {
		r, _ = new(big.Rat).SetString(r.FloatString(o.RoundScale))
	}
	return sqlast.RatText(r)
}

// Row canonicalizes every value of r.
func (o CanonOptions) Row(r Row) Row {
	out := make(Row, len(r))
	for i, v := range r {
		out[i] = o.Canonicalize(v)
	}
	return out
}

// ResultSet canonicalizes a whole result set into a new one.
func (o CanonOptions) ResultSet(rs *ResultSet) *ResultSet {
	if rs == nil {
		return nil
	}
	out := &ResultSet{Columns: append([]string(nil), rs.Columns...), Rows: make([]Row, 0, len(rs.Rows))}
	for _, r := range rs.Rows {
		out.Rows = append(out.Rows, o.Row(r))
	}
	return out
}
