package sqlast

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Constant is an immutable typed SQL value. The zero value is an untyped NULL.
type Constant struct {
	typ  DataType
	null bool
	i    int64
	dec  *big.Rat
	f    float64
	s    string
	b    bool
}

// Null returns the untyped NULL constant.
func Null() Constant {
	return Constant{typ: TypeNull, null: true}
}

// NullOf returns a NULL carrying the static type t.
func NullOf(t DataType) Constant {
	return Constant{typ: t, null: true}
}

// Bool returns a boolean constant.
func Bool(v bool) Constant {
	return Constant{typ: TypeBoolean, b: v}
}

// Int returns an integer constant of type t. Values outside the range of t
// are rejected with a CastRangeError.
func Int(t DataType, v int64) (Constant, error) {
	lo, hi, ok := t.IntRange()
	if !ok {
		return Constant{}, &CastError{From: TypeBigInt, To: t, Value: strconv.FormatInt(v, 10), Reason: "not an integer type"}
	}
	if v < lo || v > hi {
		return Constant{}, &CastRangeError{From: TypeBigInt, To: t, Value: strconv.FormatInt(v, 10)}
	}
	return Constant{typ: t, i: v}, nil
}

// BigInt returns a BIGINT constant.
func BigInt(v int64) Constant {
	return Constant{typ: TypeBigInt, i: v}
}

// MustInt is Int for values known to fit.
func MustInt(t DataType, v int64) Constant {
	c, err := Int(t, v)
	if err != nil {
		panic(err)
	}
	return c
}

// Decimal parses an exact decimal literal such as "-12.50".
func Decimal(text string) (Constant, error) {
	r, ok := parseDecimal(text)
	if !ok {
		return Constant{}, &CastError{From: TypeText, To: TypeDecimal, Value: text, Reason: "invalid decimal"}
	}
	return DecimalRat(r), nil
}

// DecimalRat wraps r as a DECIMAL constant. r must not be mutated afterwards.
func DecimalRat(r *big.Rat) Constant {
	return Constant{typ: TypeDecimal, dec: r}
}

// Float returns a FLOAT (single precision) constant.
func Float(v float64) Constant {
	return Constant{typ: TypeFloat, f: float64(float32(v))}
}

// Double returns a DOUBLE constant.
func Double(v float64) Constant {
	return Constant{typ: TypeDouble, f: v}
}

// Text returns a TEXT constant.
func Text(v string) Constant {
	return Constant{typ: TypeText, s: v}
}

// Date parses a YYYY-MM-DD value.
func Date(v string) (Constant, error) {
	if _, err := time.Parse(dateLayout, v); err != nil {
		return Constant{}, &CastError{From: TypeText, To: TypeDate, Value: v, Reason: "invalid date"}
	}
	return Constant{typ: TypeDate, s: v}, nil
}

// Datetime parses a YYYY-MM-DD HH:MM:SS value.
func Datetime(v string) (Constant, error) {
	if _, err := time.Parse(datetimeLayout, v); err != nil {
		return Constant{}, &CastError{From: TypeText, To: TypeDatetime, Value: v, Reason: "invalid datetime"}
	}
	return Constant{typ: TypeDatetime, s: v}, nil
}

// Type returns the static type.
func (c Constant) Type() DataType { return c.typ }

// IsNull reports whether c is NULL.
func (c Constant) IsNull() bool { return c.null || c.typ == TypeNull }

// BoolValue returns the payload of a non-NULL boolean.
func (c Constant) BoolValue() bool { return c.b }

// Int64 returns the payload of a non-NULL integer.
func (c Constant) Int64() int64 { return c.i }

// Float64 returns the payload of a non-NULL FLOAT or DOUBLE.
func (c Constant) Float64() float64 { return c.f }

// Rat returns a fresh copy of a numeric payload as an exact rational.
// Booleans map to 0 and 1. ok is false for NULL and non numeric types, and
// for non-finite floats.
func (c Constant) Rat() (r *big.Rat, ok bool) {
	if c.IsNull() {
		return nil, false
	}
	switch {
	case c.typ == TypeBoolean:
		if c.b {
			return big.NewRat(1, 1), true
		}
		return new(big.Rat), true
	case c.typ.IsInteger():
		return new(big.Rat).SetInt64(c.i), true
	case c.typ == TypeDecimal:
		return new(big.Rat).Set(c.dec), true
	case c.typ.IsApprox():
		if math.IsNaN(c.f) || math.IsInf(c.f, 0) {
			return nil, false
		}
		return new(big.Rat).SetFloat64(c.f), true
	default:
		return nil, false
	}
}

// Str returns the payload of TEXT, DATE and DATETIME values.
func (c Constant) Str() string { return c.s }

// String renders the value for logs and reports. NULL renders as NULL.
func (c Constant) String() string {
	if c.IsNull() {
		return "NULL"
	}
	switch {
	case c.typ == TypeBoolean:
		if c.b {
			return "TRUE"
		}
		return "FALSE"
	case c.typ.IsInteger():
		return strconv.FormatInt(c.i, 10)
	case c.typ == TypeDecimal:
		return RatText(c.dec)
	case c.typ == TypeFloat:
		return strconv.FormatFloat(c.f, 'g', -1, 32)
	case c.typ == TypeDouble:
		return strconv.FormatFloat(c.f, 'g', -1, 64)
	default:
		return c.s
	}
}

func (Constant) exprNode() {}

// Cast converts c to the target type with the checked semantics the engines
// share. NULL casts to a NULL of the target type.
func (c Constant) Cast(to DataType) (Constant, error) {
	if c.IsNull() {
		return NullOf(to), nil
	}
	if c.typ == to {
		return c, nil
	}
	unsupported := func(reason string) (Constant, error) {
		return Constant{}, &CastError{From: c.typ, To: to, Value: c.String(), Reason: reason}
	}
	switch {
	case c.typ == TypeBoolean:
		var v int64
		if c.b {
			v = 1
		}
		switch {
		case to.IsInteger():
			return Int(to, v)
		case to == TypeDecimal:
			return DecimalRat(big.NewRat(v, 1)), nil
		case to == TypeFloat:
			return Float(float64(v)), nil
		case to == TypeDouble:
			return Double(float64(v)), nil
		}
		return unsupported("boolean conversion")

	case c.typ.IsInteger():
		switch {
		case to.IsInteger():
			return c.narrow(to, new(big.Int).SetInt64(c.i))
		case to == TypeBoolean:
			return Bool(c.i != 0), nil
		case to == TypeDecimal:
			return DecimalRat(new(big.Rat).SetInt64(c.i)), nil
		case to == TypeFloat:
			return Float(float64(c.i)), nil
		case to == TypeDouble:
			return Double(float64(c.i)), nil
		case to == TypeText:
			return Text(strconv.FormatInt(c.i, 10)), nil
		}
		return unsupported("integer conversion")

	case c.typ == TypeDecimal:
		switch {
		case to.IsInteger():
			return c.narrow(to, roundHalfUp(c.dec))
		case to == TypeFloat, to == TypeDouble:
			f, _ := c.dec.Float64()
			if to == TypeFloat {
				if math.Abs(f) > math.MaxFloat32 {
					return Constant{}, &CastRangeError{From: c.typ, To: to, Value: c.String()}
				}
				return Float(f), nil
			}
			return Double(f), nil
		case to == TypeText:
			return Text(RatText(c.dec)), nil
		}
		return unsupported("decimal conversion")

	case c.typ.IsApprox():
		if math.IsNaN(c.f) || math.IsInf(c.f, 0) {
			return Constant{}, &CastRangeError{From: c.typ, To: to, Value: c.String()}
		}
		switch {
		case to.IsInteger():
			return c.narrow(to, roundHalfUp(new(big.Rat).SetFloat64(c.f)))
		case to == TypeBoolean:
			return Bool(c.f != 0), nil
		case to == TypeDecimal:
			return DecimalRat(new(big.Rat).SetFloat64(c.f)), nil
		case to == TypeFloat:
			if math.Abs(c.f) > math.MaxFloat32 {
				return Constant{}, &CastRangeError{From: c.typ, To: to, Value: c.String()}
			}
			return Float(c.f), nil
		case to == TypeDouble:
			return Double(c.f), nil
		case to == TypeText:
			return Text(c.String()), nil
		}
		return unsupported("float conversion")

	case c.typ == TypeText:
		switch {
		case to.IsInteger():
			n, ok := new(big.Int).SetString(c.s, 10)
			if !ok {
				return unsupported("invalid integer text")
			}
			return c.narrow(to, n)
		case to == TypeDecimal:
			return Decimal(c.s)
		case to == TypeFloat, to == TypeDouble:
			f, err := strconv.ParseFloat(c.s, 64)
			if err != nil {
				return unsupported("invalid float text")
			}
			if to == TypeFloat {
				return Float(f), nil
			}
			return Double(f), nil
		case to == TypeDate:
			return Date(c.s)
		case to == TypeDatetime:
			return Datetime(c.s)
		}
		return unsupported("text conversion")

	case c.typ == TypeDate:
		switch to {
		case TypeText:
			return Text(c.s), nil
		case TypeDatetime:
			return Constant{typ: TypeDatetime, s: c.s + " 00:00:00"}, nil
		}
		return unsupported("date conversion")

	case c.typ == TypeDatetime:
		switch to {
		case TypeText:
			return Text(c.s), nil
		case TypeDate:
			return Constant{typ: TypeDate, s: c.s[:len(dateLayout)]}, nil
		}
		return unsupported("datetime conversion")
	}
	return unsupported("unsupported source type")
}

func (c Constant) narrow(to DataType, n *big.Int) (Constant, error) {
	lo, hi, _ := to.IntRange()
	if !n.IsInt64() || n.Int64() < lo || n.Int64() > hi {
		return Constant{}, &CastRangeError{From: c.typ, To: to, Value: c.String()}
	}
	return Constant{typ: to, i: n.Int64()}, nil
}

// ParseConstant builds a constant of type t from the text a driver returned
// for a column of that type.
func ParseConstant(t DataType, raw string) (Constant, error) {
	switch {
	case t == TypeBoolean:
		switch strings.ToLower(raw) {
		case "1", "true", "t":
			return Bool(true), nil
		case "0", "false", "f":
			return Bool(false), nil
		}
		return Constant{}, &CastError{From: TypeText, To: t, Value: raw, Reason: "invalid boolean"}
	case t.IsInteger():
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Constant{}, &CastError{From: TypeText, To: t, Value: raw, Reason: "invalid integer"}
		}
		return Int(t, v)
	case t == TypeDecimal:
		return Decimal(raw)
	case t.IsApprox():
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Constant{}, &CastError{From: TypeText, To: t, Value: raw, Reason: "invalid float"}
		}
		if t == TypeFloat {
			return Float(v), nil
		}
		return Double(v), nil
	case t == TypeText:
		return Text(raw), nil
	case t == TypeDate:
		if len(raw) > len(dateLayout) {
			raw = raw[:len(dateLayout)]
		}
		return Date(raw)
	case t == TypeDatetime:
		raw = strings.Replace(raw, "T", " ", 1)
		raw = strings.TrimSuffix(raw, "Z")
		if len(raw) > len(datetimeLayout) {
			raw = raw[:len(datetimeLayout)]
		}
		return Datetime(raw)
	}
	return Constant{}, &CastError{From: TypeText, To: t, Value: raw, Reason: "unsupported column type"}
}

// CastError reports a conversion the model does not support.
type CastError struct {
	From, To DataType
	Value    string
	Reason   string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %s %q to %s: %s", e.From, e.Value, e.To, e.Reason)
}

// CastRangeError reports a narrowing conversion whose value does not fit.
type CastRangeError struct {
	From, To DataType
	Value    string
}

func (e *CastRangeError) Error() string {
	return fmt.Sprintf("%s out of range", strings.ToLower(e.To.String()))
}

func parseDecimal(text string) (*big.Rat, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, "/eEnN") {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(text)
	return r, ok
}

// roundHalfUp rounds to the nearest integer, ties away from zero.
func roundHalfUp(r *big.Rat) *big.Int {
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()
	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	if new(big.Int).Lsh(m, 1).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if r.Sign() < 0 {
		q.Neg(q)
	}
	return q
}

// RatText renders r in plain decimal notation with no trailing zeros.
// Values without a finite decimal expansion are cut at 30 digits.
func RatText(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	ten := big.NewInt(10)
	den := new(big.Int).Set(r.Denom())
	scale := 0
	for scale < 30 {
		if new(big.Int).Rem(den, ten).Sign() != 0 {
			break
		}
		den.Quo(den, ten)
		scale++
	}
	// den now has no factor of ten left; strip the remaining twos and fives.
	for scale < 30 && den.Cmp(big.NewInt(1)) != 0 {
		switch {
		case new(big.Int).Rem(den, big.NewInt(2)).Sign() == 0:
			den.Quo(den, big.NewInt(2))
		case new(big.Int).Rem(den, big.NewInt(5)).Sign() == 0:
			den.Quo(den, big.NewInt(5))
		default:
			scale = 30
			continue
		}
		scale++
	}
	s := r.FloatString(scale)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}
