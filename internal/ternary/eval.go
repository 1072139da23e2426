package ternary

import (
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"sqlancer/internal/sqlast"
)

// Collation selects how text values compare.
type Collation int

const (
	// CollationBinary compares bytes.
	CollationBinary Collation = iota
	// CollationCaseInsensitive folds ASCII case. Only alphanumeric strings
	// are folded; anything else is reported as unsupported since padding and
	// punctuation weights differ between engine collations.
	CollationCaseInsensitive
)

// DivisionMode selects how integer division is modelled.
type DivisionMode int

const (
	// DivisionUnsupported refuses to fold integer division.
	DivisionUnsupported DivisionMode = iota
	// DivisionTruncate truncates toward zero, as SQLite does.
	DivisionTruncate
)

// Config carries the dialect facts the evaluator needs. It is passed
// explicitly; there is no package level state.
type Config struct {
	// OnlyKnownTypes restricts folding to booleans, integers, decimals
	// and text. Approximate and temporal values become unsupported.
	OnlyKnownTypes bool
	Collation      Collation
	Division       DivisionMode
	// DivisionByZeroNull folds x/0 and x%0 to NULL instead of refusing.
	DivisionByZeroNull bool
}

// Evaluator folds expressions against a row. It holds no mutable state and
// is safe for concurrent use.
type Evaluator struct {
	cfg Config
}

// New returns an evaluator for cfg.
func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Config returns the evaluator configuration.
func (ev *Evaluator) Config() Config { return ev.cfg }

// Evaluate folds e to a truth value.
func (ev *Evaluator) Evaluate(e sqlast.Expr, row sqlast.RowValue) (Truth, error) {
	v, err := ev.eval(e, row)
	if err != nil {
		return Unknown, err
	}
	return ev.truth(e, v)
}

// EvaluateScalar folds e to a constant. Boolean results are boolean
// constants, with UNKNOWN as a boolean NULL.
func (ev *Evaluator) EvaluateScalar(e sqlast.Expr, row sqlast.RowValue) (sqlast.Constant, error) {
	return ev.eval(e, row)
}

func (ev *Evaluator) known(node any, c sqlast.Constant) error {
	if !ev.cfg.OnlyKnownTypes {
		return nil
	}
	t := c.Type()
	if t.IsApprox() || t.IsTemporal() {
		return unsupported(node, "type "+t.String()+" excluded by only_known_types")
	}
	return nil
}

func (ev *Evaluator) truth(node any, v sqlast.Constant) (Truth, error) {
	if v.IsNull() {
		return Unknown, nil
	}
	t := v.Type()
	switch {
	case t == sqlast.TypeBoolean:
		return FromBool(v.BoolValue()), nil
	case t.IsInteger():
		return FromBool(v.Int64() != 0), nil
	case t == sqlast.TypeDecimal, t.IsApprox():
		r, ok := v.Rat()
		if !ok {
			return Unknown, unsupported(node, "non-finite value in boolean context")
		}
		return FromBool(r.Sign() != 0), nil
	}
	return Unknown, unsupported(node, t.String()+" in boolean context")
}

func (ev *Evaluator) evalTruth(e sqlast.Expr, row sqlast.RowValue) (Truth, error) {
	v, err := ev.eval(e, row)
	if err != nil {
		return Unknown, err
	}
	return ev.truth(e, v)
}

func (ev *Evaluator) eval(e sqlast.Expr, row sqlast.RowValue) (sqlast.Constant, error) {
	switch n := e.(type) {
	case sqlast.Constant:
		if err := ev.known(n, n); err != nil {
			return sqlast.Constant{}, err
		}
		return n, nil

	case sqlast.ColumnRef:
		v, err := row.Get(n)
		if err != nil {
			return sqlast.Constant{}, unsupportedCause(n, "column lookup", err)
		}
		if v.Type() == sqlast.TypeNull {
			v = sqlast.NullOf(n.DataType)
		}
		if err := ev.known(n, v); err != nil {
			return sqlast.Constant{}, err
		}
		return v, nil

	case sqlast.Unary:
		return ev.evalUnary(n, row)

	case sqlast.Postfix:
		return ev.evalPostfix(n, row)

	case sqlast.Binary:
		return ev.evalBinary(n, row)

	case sqlast.Func:
		return ev.evalFunc(n, row)

	case sqlast.Cast:
		v, err := ev.eval(n.Expr, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		if n.To == sqlast.TypeText && (v.Type() == sqlast.TypeDecimal || v.Type().IsApprox()) {
			return sqlast.Constant{}, unsupported(n, "numeric to text rendering is scale dependent")
		}
		out, err := v.Cast(n.To)
		if err != nil {
			return sqlast.Constant{}, unsupportedCause(n, "cast", err)
		}
		if err := ev.known(n, out); err != nil {
			return sqlast.Constant{}, err
		}
		return out, nil

	case sqlast.Between:
		x, err := ev.eval(n.Expr, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		lo, err := ev.eval(n.Lo, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		hi, err := ev.eval(n.Hi, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		ge, err := ev.compareTruth(n, sqlast.OpGe, x, lo)
		if err != nil {
			return sqlast.Constant{}, err
		}
		le, err := ev.compareTruth(n, sqlast.OpLe, x, hi)
		if err != nil {
			return sqlast.Constant{}, err
		}
		t := And(ge, le)
		if n.Not {
			t = Not(t)
		}
		return t.Constant(), nil

	case sqlast.In:
		x, err := ev.eval(n.Expr, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		if len(n.List) == 0 {
			return sqlast.Constant{}, unsupported(n, "empty IN list")
		}
		t := False
		for _, item := range n.List {
			v, err := ev.eval(item, row)
			if err != nil {
				return sqlast.Constant{}, err
			}
			eq, err := ev.compareTruth(n, sqlast.OpEq, x, v)
			if err != nil {
				return sqlast.Constant{}, err
			}
			t = Or(t, eq)
		}
		if n.Not {
			t = Not(t)
		}
		return t.Constant(), nil

	case sqlast.Exists:
		return sqlast.Constant{}, unsupported(n, "subquery")
	case sqlast.Aggregate:
		return sqlast.Constant{}, unsupported(n, "aggregate")
	case sqlast.Opaque:
		return sqlast.Constant{}, unsupported(n, "opaque fragment")
	}
	return sqlast.Constant{}, unsupported(e, "unknown node")
}

func (ev *Evaluator) evalUnary(n sqlast.Unary, row sqlast.RowValue) (sqlast.Constant, error) {
	if n.Op == sqlast.OpNot {
		t, err := ev.evalTruth(n.Expr, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		return Not(t).Constant(), nil
	}
	v, err := ev.eval(n.Expr, row)
	if err != nil {
		return sqlast.Constant{}, err
	}
	t := v.Type()
	if t != sqlast.TypeNull && t != sqlast.TypeBoolean && !t.IsNumeric() {
		return sqlast.Constant{}, unsupported(n, "sign of "+t.String())
	}
	if v.IsNull() {
		return v, nil
	}
	switch n.Op {
	case sqlast.OpPlus:
		return v, nil
	case sqlast.OpNeg:
		switch {
		case t == sqlast.TypeBoolean:
			if v.BoolValue() {
				return sqlast.BigInt(-1), nil
			}
			return sqlast.BigInt(0), nil
		case t.IsInteger():
			if v.Int64() == math.MinInt64 {
				return sqlast.Constant{}, unsupported(n, "integer overflow")
			}
			return sqlast.BigInt(-v.Int64()), nil
		case t == sqlast.TypeDecimal:
			r, _ := v.Rat()
			return sqlast.DecimalRat(r.Neg(r)), nil
		default:
			return sqlast.Double(-v.Float64()), nil
		}
	}
	return sqlast.Constant{}, unsupported(n, "operator "+string(n.Op))
}

func (ev *Evaluator) evalPostfix(n sqlast.Postfix, row sqlast.RowValue) (sqlast.Constant, error) {
	v, err := ev.eval(n.Expr, row)
	if err != nil {
		return sqlast.Constant{}, err
	}
	switch n.Op {
	case sqlast.OpIsNull:
		return sqlast.Bool(v.IsNull()), nil
	case sqlast.OpIsNotNull:
		return sqlast.Bool(!v.IsNull()), nil
	}
	t, err := ev.truth(n, v)
	if err != nil {
		return sqlast.Constant{}, err
	}
	switch n.Op {
	case sqlast.OpIsTrue:
		return sqlast.Bool(t == True), nil
	case sqlast.OpIsFalse:
		return sqlast.Bool(t == False), nil
	case sqlast.OpIsNotTrue:
		return sqlast.Bool(t != True), nil
	case sqlast.OpIsNotFalse:
		return sqlast.Bool(t != False), nil
	}
	return sqlast.Constant{}, unsupported(n, "operator "+string(n.Op))
}

func (ev *Evaluator) evalBinary(n sqlast.Binary, row sqlast.RowValue) (sqlast.Constant, error) {
	if n.Op.IsLogical() {
		l, err := ev.evalTruth(n.Left, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		r, err := ev.evalTruth(n.Right, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		if n.Op == sqlast.OpAnd {
			return And(l, r).Constant(), nil
		}
		return Or(l, r).Constant(), nil
	}
	l, err := ev.eval(n.Left, row)
	if err != nil {
		return sqlast.Constant{}, err
	}
	r, err := ev.eval(n.Right, row)
	if err != nil {
		return sqlast.Constant{}, err
	}
	if n.Op.IsComparison() {
		t, err := ev.compareTruth(n, n.Op, l, r)
		if err != nil {
			return sqlast.Constant{}, err
		}
		return t.Constant(), nil
	}
	if n.Op.IsArithmetic() {
		return ev.arith(n, l, r)
	}
	return sqlast.Constant{}, unsupported(n, "operator "+string(n.Op))
}

func (ev *Evaluator) compareTruth(node any, op sqlast.BinaryOp, l, r sqlast.Constant) (Truth, error) {
	if op == sqlast.OpNullSafe {
		switch {
		case l.IsNull() && r.IsNull():
			return True, nil
		case l.IsNull() || r.IsNull():
			return False, nil
		}
		c, err := ev.compare(node, l, r)
		if err != nil {
			return Unknown, err
		}
		return FromBool(c == 0), nil
	}
	if err := checkComparable(node, l.Type(), r.Type()); err != nil {
		return Unknown, err
	}
	if l.IsNull() || r.IsNull() {
		return Unknown, nil
	}
	c, err := ev.compare(node, l, r)
	if err != nil {
		return Unknown, err
	}
	switch op {
	case sqlast.OpEq:
		return FromBool(c == 0), nil
	case sqlast.OpNe:
		return FromBool(c != 0), nil
	case sqlast.OpLt:
		return FromBool(c < 0), nil
	case sqlast.OpLe:
		return FromBool(c <= 0), nil
	case sqlast.OpGt:
		return FromBool(c > 0), nil
	case sqlast.OpGe:
		return FromBool(c >= 0), nil
	}
	return Unknown, unsupported(node, "operator "+string(op))
}

type family int

const (
	familyNull family = iota
	familyNumber
	familyText
	familyDate
	familyDatetime
)

func familyOf(t sqlast.DataType) family {
	switch {
	case t == sqlast.TypeNull:
		return familyNull
	case t == sqlast.TypeBoolean, t.IsNumeric():
		return familyNumber
	case t == sqlast.TypeText:
		return familyText
	case t == sqlast.TypeDate:
		return familyDate
	default:
		return familyDatetime
	}
}

// checkComparable rejects pairs whose comparison would rely on implicit coercion.
func checkComparable(node any, a, b sqlast.DataType) error {
	fa, fb := familyOf(a), familyOf(b)
	if fa == familyNull || fb == familyNull || fa == fb {
		return nil
	}
	return unsupported(node, "comparison of "+a.String()+" with "+b.String())
}

func (ev *Evaluator) compare(node any, l, r sqlast.Constant) (int, error) {
	if err := checkComparable(node, l.Type(), r.Type()); err != nil {
		return 0, err
	}
	switch familyOf(l.Type()) {
	case familyNumber:
		if l.Type().IsApprox() || r.Type().IsApprox() {
			lf, lok := l.Rat()
			rf, rok := r.Rat()
			if !lok || !rok {
				return 0, unsupported(node, "non-finite comparison")
			}
			a, _ := lf.Float64()
			b, _ := rf.Float64()
			switch {
			case a < b:
				return -1, nil
			case a > b:
				return 1, nil
			}
			return 0, nil
		}
		lr, _ := l.Rat()
		rr, _ := r.Rat()
		return lr.Cmp(rr), nil
	case familyText:
		a, b := l.Str(), r.Str()
		if ev.cfg.Collation == CollationCaseInsensitive {
			if !alnumASCII(a) || !alnumASCII(b) {
				return 0, unsupported(node, "collation dependent text comparison")
			}
			a, b = strings.ToUpper(a), strings.ToUpper(b)
		}
		return strings.Compare(a, b), nil
	default:
		return strings.Compare(l.Str(), r.Str()), nil
	}
}

func alnumASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func (ev *Evaluator) divisionByZero(node any, t sqlast.DataType) (sqlast.Constant, error) {
	if ev.cfg.DivisionByZeroNull {
		return sqlast.NullOf(t), nil
	}
	return sqlast.Constant{}, unsupported(node, "division by zero")
}

func (ev *Evaluator) arith(n sqlast.Binary, l, r sqlast.Constant) (sqlast.Constant, error) {
	lt, rt := l.Type(), r.Type()
	for _, t := range []sqlast.DataType{lt, rt} {
		if t != sqlast.TypeNull && t != sqlast.TypeBoolean && !t.IsNumeric() {
			return sqlast.Constant{}, unsupported(n, "arithmetic on "+t.String())
		}
	}
	resType := sqlast.Promote(lt, rt)
	if resType == sqlast.TypeBoolean || resType == sqlast.TypeNull {
		resType = sqlast.TypeBigInt
	}
	if l.IsNull() || r.IsNull() {
		return sqlast.NullOf(resType), nil
	}
	lr, lok := l.Rat()
	rr, rok := r.Rat()
	if !lok || !rok {
		return sqlast.Constant{}, unsupported(n, "non-finite operand")
	}

	switch {
	case resType.IsApprox():
		a, _ := lr.Float64()
		b, _ := rr.Float64()
		var out float64
		switch n.Op {
		case sqlast.OpAdd:
			out = a + b
		case sqlast.OpSub:
			out = a - b
		case sqlast.OpMul:
			out = a * b
		case sqlast.OpDiv, sqlast.OpMod:
			if b == 0 {
				return ev.divisionByZero(n, resType)
			}
			if n.Op == sqlast.OpDiv {
				out = a / b
			} else {
				out = math.Mod(a, b)
			}
		}
		if math.IsInf(out, 0) || math.IsNaN(out) {
			return sqlast.Constant{}, unsupported(n, "floating overflow")
		}
		return sqlast.Double(out), nil

	case resType == sqlast.TypeDecimal:
		out := new(big.Rat)
		switch n.Op {
		case sqlast.OpAdd:
			out.Add(lr, rr)
		case sqlast.OpSub:
			out.Sub(lr, rr)
		case sqlast.OpMul:
			out.Mul(lr, rr)
		default:
			if rr.Sign() == 0 {
				return ev.divisionByZero(n, resType)
			}
			return sqlast.Constant{}, unsupported(n, "decimal division scale")
		}
		return sqlast.DecimalRat(out), nil
	}

	a, b := lr.Num(), rr.Num()
	out := new(big.Int)
	switch n.Op {
	case sqlast.OpAdd:
		out.Add(a, b)
	case sqlast.OpSub:
		out.Sub(a, b)
	case sqlast.OpMul:
		out.Mul(a, b)
	case sqlast.OpDiv, sqlast.OpMod:
		if b.Sign() == 0 {
			return ev.divisionByZero(n, sqlast.TypeBigInt)
		}
		if n.Op == sqlast.OpDiv {
			if ev.cfg.Division != DivisionTruncate {
				return sqlast.Constant{}, unsupported(n, "integer division")
			}
			out.Quo(a, b)
		} else {
			out.Rem(a, b)
		}
	}
	if !out.IsInt64() {
		return sqlast.Constant{}, unsupported(n, "integer overflow")
	}
	return sqlast.BigInt(out.Int64()), nil
}

func (ev *Evaluator) evalFunc(n sqlast.Func, row sqlast.RowValue) (sqlast.Constant, error) {
	args := make([]sqlast.Constant, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := ev.eval(a, row)
		if err != nil {
			return sqlast.Constant{}, err
		}
		args = append(args, v)
	}
	name := strings.ToUpper(n.Name)
	arity := func(want int) error {
		if len(args) != want {
			return unsupported(n, "wrong argument count for "+name)
		}
		return nil
	}
	switch name {
	case "COALESCE", "IFNULL":
		if len(args) == 0 || (name == "IFNULL" && len(args) != 2) {
			return sqlast.Constant{}, unsupported(n, "wrong argument count for "+name)
		}
		for i := 1; i < len(args); i++ {
			if err := checkComparable(n, args[0].Type(), args[i].Type()); err != nil {
				return sqlast.Constant{}, err
			}
		}
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return sqlast.NullOf(n.Ret), nil

	case "NULLIF":
		if err := arity(2); err != nil {
			return sqlast.Constant{}, err
		}
		if args[0].IsNull() || args[1].IsNull() {
			if err := checkComparable(n, args[0].Type(), args[1].Type()); err != nil {
				return sqlast.Constant{}, err
			}
			return args[0], nil
		}
		c, err := ev.compare(n, args[0], args[1])
		if err != nil {
			return sqlast.Constant{}, err
		}
		if c == 0 {
			return sqlast.NullOf(args[0].Type()), nil
		}
		return args[0], nil

	case "ABS":
		if err := arity(1); err != nil {
			return sqlast.Constant{}, err
		}
		v := args[0]
		t := v.Type()
		if t != sqlast.TypeNull && !t.IsNumeric() {
			return sqlast.Constant{}, unsupported(n, "ABS of "+t.String())
		}
		if v.IsNull() {
			return v, nil
		}
		switch {
		case t.IsInteger():
			if v.Int64() == math.MinInt64 {
				return sqlast.Constant{}, unsupported(n, "integer overflow")
			}
			if v.Int64() < 0 {
				return sqlast.BigInt(-v.Int64()), nil
			}
			return v, nil
		case t == sqlast.TypeDecimal:
			r, _ := v.Rat()
			return sqlast.DecimalRat(r.Abs(r)), nil
		default:
			return sqlast.Double(math.Abs(v.Float64())), nil
		}

	case "UPPER", "LOWER", "LENGTH":
		if err := arity(1); err != nil {
			return sqlast.Constant{}, err
		}
		v := args[0]
		if v.Type() != sqlast.TypeNull && v.Type() != sqlast.TypeText {
			return sqlast.Constant{}, unsupported(n, name+" of "+v.Type().String())
		}
		if v.IsNull() {
			return sqlast.NullOf(n.Ret), nil
		}
		s := v.Str()
		if name == "LENGTH" {
			return sqlast.BigInt(int64(utf8.RuneCountInString(s))), nil
		}
		if !asciiOnly(s) {
			return sqlast.Constant{}, unsupported(n, "case mapping outside ASCII")
		}
		if name == "UPPER" {
			return sqlast.Text(strings.ToUpper(s)), nil
		}
		return sqlast.Text(strings.ToLower(s)), nil
	}
	return sqlast.Constant{}, unsupported(n, "function "+name)
}

func asciiOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
