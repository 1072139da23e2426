package ternary

import (
	"errors"
	"math"
	"testing"

	"sqlancer/internal/sqlast"
)

var allTruths = []Truth{True, False, Unknown}

func TestKleeneTables(t *testing.T) {
	and := map[[2]Truth]Truth{
		{True, True}: True, {True, False}: False, {True, Unknown}: Unknown,
		{False, True}: False, {False, False}: False, {False, Unknown}: False,
		{Unknown, True}: Unknown, {Unknown, False}: False, {Unknown, Unknown}: Unknown,
	}
	or := map[[2]Truth]Truth{
		{True, True}: True, {True, False}: True, {True, Unknown}: True,
		{False, True}: True, {False, False}: False, {False, Unknown}: Unknown,
		{Unknown, True}: True, {Unknown, False}: Unknown, {Unknown, Unknown}: Unknown,
	}
	for _, a := range allTruths {
		for _, b := range allTruths {
			if got := And(a, b); got != and[[2]Truth{a, b}] {
				t.Fatalf("%s AND %s: expected %s, got %s", a, b, and[[2]Truth{a, b}], got)
			}
			if got := Or(a, b); got != or[[2]Truth{a, b}] {
				t.Fatalf("%s OR %s: expected %s, got %s", a, b, or[[2]Truth{a, b}], got)
			}
			if And(a, b) != And(b, a) || Or(a, b) != Or(b, a) {
				t.Fatalf("operators are not commutative for %s, %s", a, b)
			}
			// De Morgan holds in K3.
			if Not(And(a, b)) != Or(Not(a), Not(b)) {
				t.Fatalf("de morgan failed for %s, %s", a, b)
			}
		}
	}
	if Not(True) != False || Not(False) != True || Not(Unknown) != Unknown {
		t.Fatalf("negation table is wrong")
	}
}

func TestEvaluatorMatchesTablesThroughExpressions(t *testing.T) {
	ev := New(Config{OnlyKnownTypes: true})
	lit := func(v Truth) sqlast.Expr { return v.Constant() }
	for _, a := range allTruths {
		if got, err := ev.Evaluate(sqlast.Not(lit(a)), sqlast.RowValue{}); err != nil || got != Not(a) {
			t.Fatalf("NOT %s: expected %s, got %s (%v)", a, Not(a), got, err)
		}
		for _, b := range allTruths {
			got, err := ev.Evaluate(sqlast.And(lit(a), lit(b)), sqlast.RowValue{})
			if err != nil || got != And(a, b) {
				t.Fatalf("%s AND %s: expected %s, got %s (%v)", a, b, And(a, b), got, err)
			}
			got, err = ev.Evaluate(sqlast.Or(lit(a), lit(b)), sqlast.RowValue{})
			if err != nil || got != Or(a, b) {
				t.Fatalf("%s OR %s: expected %s, got %s (%v)", a, b, Or(a, b), got, err)
			}
		}
	}
}

func pivot(t *testing.T, cols []sqlast.ColumnRef, vals ...sqlast.Constant) sqlast.RowValue {
	t.Helper()
	rv, err := sqlast.NewRowValue(cols, vals, nil)
	if err != nil {
		t.Fatalf("row value: %v", err)
	}
	return rv
}

func TestNullPropagationAndTolerantOperators(t *testing.T) {
	a := sqlast.Col("t0", "c0", sqlast.TypeInt)
	row := pivot(t, []sqlast.ColumnRef{a}, sqlast.NullOf(sqlast.TypeInt))
	ev := New(Config{OnlyKnownTypes: true})

	cases := []struct {
		name string
		expr sqlast.Expr
		want Truth
	}{
		{"gt", sqlast.Cmp(a, sqlast.OpGt, sqlast.BigInt(0)), Unknown},
		{"eq null", sqlast.Cmp(a, sqlast.OpEq, sqlast.Null()), Unknown},
		{"arith", sqlast.Cmp(sqlast.Cmp(a, sqlast.OpAdd, sqlast.BigInt(1)), sqlast.OpGt, sqlast.BigInt(0)), Unknown},
		{"is null", sqlast.Is(a, sqlast.OpIsNull), True},
		{"is not null", sqlast.Is(a, sqlast.OpIsNotNull), False},
		{"is true", sqlast.Is(sqlast.Cmp(a, sqlast.OpGt, sqlast.BigInt(0)), sqlast.OpIsTrue), False},
		{"is not false", sqlast.Is(sqlast.Cmp(a, sqlast.OpGt, sqlast.BigInt(0)), sqlast.OpIsNotFalse), True},
		{"null safe", sqlast.Cmp(a, sqlast.OpNullSafe, sqlast.Null()), True},
		{"null safe value", sqlast.Cmp(a, sqlast.OpNullSafe, sqlast.BigInt(1)), False},
		{"coalesce", sqlast.Cmp(sqlast.Call("COALESCE", sqlast.TypeInt, a, sqlast.BigInt(3)), sqlast.OpEq, sqlast.BigInt(3)), True},
		{"ifnull", sqlast.Cmp(sqlast.Call("IFNULL", sqlast.TypeInt, a, sqlast.BigInt(4)), sqlast.OpEq, sqlast.BigInt(4)), True},
		{"nullif first", sqlast.Is(sqlast.Call("NULLIF", sqlast.TypeInt, a, sqlast.BigInt(4)), sqlast.OpIsNull), True},
		{"and false", sqlast.And(sqlast.Cmp(a, sqlast.OpGt, sqlast.BigInt(0)), sqlast.Bool(false)), False},
		{"or true", sqlast.Or(sqlast.Cmp(a, sqlast.OpGt, sqlast.BigInt(0)), sqlast.Bool(true)), True},
		{"in with null", sqlast.InList(sqlast.BigInt(1), false, sqlast.BigInt(2), a), Unknown},
		{"in hit", sqlast.InList(sqlast.BigInt(2), false, sqlast.BigInt(2), a), True},
		{"between", sqlast.Between{Expr: a, Lo: sqlast.BigInt(0), Hi: sqlast.BigInt(1)}, Unknown},
	}
	for _, tc := range cases {
		got, err := ev.Evaluate(tc.expr, row)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestUnsupportedExpressions(t *testing.T) {
	a := sqlast.Col("t0", "c0", sqlast.TypeBigInt)
	f := sqlast.Col("t0", "c1", sqlast.TypeDouble)
	s := sqlast.Col("t0", "c2", sqlast.TypeText)
	row := pivot(t, []sqlast.ColumnRef{a, f, s}, sqlast.BigInt(math.MaxInt64), sqlast.Double(0.5), sqlast.Text("x"))
	ev := New(Config{OnlyKnownTypes: true})

	cases := []sqlast.Expr{
		sqlast.Cmp(sqlast.Cmp(a, sqlast.OpAdd, sqlast.BigInt(1)), sqlast.OpGt, sqlast.BigInt(0)),
		sqlast.Cmp(sqlast.Cmp(a, sqlast.OpMod, sqlast.BigInt(0)), sqlast.OpGt, sqlast.BigInt(0)),
		sqlast.Cmp(f, sqlast.OpGt, sqlast.BigInt(0)),
		sqlast.Cmp(s, sqlast.OpGt, sqlast.BigInt(0)),
		sqlast.Exists{Query: sqlast.NewSelect(sqlast.TableRef{Name: "t0"})},
		sqlast.Opaque{SQL: "RAND() > 0.5", DataType: sqlast.TypeBoolean},
		sqlast.Aggregate{Name: "COUNT"},
		sqlast.Cmp(sqlast.Call("NO_SUCH_FN", sqlast.TypeInt), sqlast.OpEq, sqlast.BigInt(1)),
		s,
		sqlast.Cmp(a, sqlast.OpEq, sqlast.Col("t9", "c0", sqlast.TypeInt)),
	}
	for i, e := range cases {
		_, err := ev.Evaluate(e, row)
		if !errors.Is(err, ErrUnsupportedExpression) {
			t.Fatalf("case %d: expected ErrUnsupportedExpression, got %v", i, err)
		}
	}
}

func TestCastRangeIsUnsupported(t *testing.T) {
	ev := New(Config{})
	e := sqlast.Cmp(sqlast.Cast{Expr: sqlast.BigInt(70000), To: sqlast.TypeSmallInt}, sqlast.OpGt, sqlast.BigInt(0))
	_, err := ev.Evaluate(e, sqlast.RowValue{})
	if !errors.Is(err, ErrUnsupportedExpression) {
		t.Fatalf("expected ErrUnsupportedExpression, got %v", err)
	}
	var rangeErr *sqlast.CastRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected wrapped CastRangeError, got %v", err)
	}
}

func TestDialectKnobs(t *testing.T) {
	div := sqlast.Cmp(sqlast.Cmp(sqlast.BigInt(7), sqlast.OpDiv, sqlast.BigInt(2)), sqlast.OpEq, sqlast.BigInt(3))
	if _, err := New(Config{}).Evaluate(div, sqlast.RowValue{}); !errors.Is(err, ErrUnsupportedExpression) {
		t.Fatalf("expected integer division to be unsupported, got %v", err)
	}
	got, err := New(Config{Division: DivisionTruncate}).Evaluate(div, sqlast.RowValue{})
	if err != nil || got != True {
		t.Fatalf("expected TRUE, got %s (%v)", got, err)
	}
	zero := sqlast.Is(sqlast.Cmp(sqlast.BigInt(7), sqlast.OpMod, sqlast.BigInt(0)), sqlast.OpIsNull)
	got, err = New(Config{DivisionByZeroNull: true}).Evaluate(zero, sqlast.RowValue{})
	if err != nil || got != True {
		t.Fatalf("expected TRUE, got %s (%v)", got, err)
	}

	ci := New(Config{Collation: CollationCaseInsensitive})
	got, err = ci.Evaluate(sqlast.Cmp(sqlast.Text("abc"), sqlast.OpEq, sqlast.Text("ABC")), sqlast.RowValue{})
	if err != nil || got != True {
		t.Fatalf("expected case-insensitive match, got %s (%v)", got, err)
	}
	if _, err := ci.Evaluate(sqlast.Cmp(sqlast.Text("a "), sqlast.OpEq, sqlast.Text("a")), sqlast.RowValue{}); !errors.Is(err, ErrUnsupportedExpression) {
		t.Fatalf("expected padded comparison to be unsupported, got %v", err)
	}
	got, err = New(Config{}).Evaluate(sqlast.Cmp(sqlast.Text("abc"), sqlast.OpEq, sqlast.Text("ABC")), sqlast.RowValue{})
	if err != nil || got != False {
		t.Fatalf("expected binary mismatch, got %s (%v)", got, err)
	}
}

func TestNumericComparisonsAcrossTypes(t *testing.T) {
	ev := New(Config{OnlyKnownTypes: true})
	dec, err := sqlast.Decimal("1.50")
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}
	cases := []struct {
		expr sqlast.Expr
		want Truth
	}{
		{sqlast.Cmp(dec, sqlast.OpGt, sqlast.BigInt(1)), True},
		{sqlast.Cmp(sqlast.Bool(true), sqlast.OpEq, sqlast.BigInt(1)), True},
		{sqlast.Cmp(sqlast.MustInt(sqlast.TypeSmallInt, -1), sqlast.OpLt, sqlast.BigInt(0)), True},
		{sqlast.Cmp(sqlast.Cmp(dec, sqlast.OpMul, sqlast.BigInt(2)), sqlast.OpEq, sqlast.BigInt(3)), True},
		{sqlast.Cmp(sqlast.Call("ABS", sqlast.TypeBigInt, sqlast.BigInt(-5)), sqlast.OpEq, sqlast.BigInt(5)), True},
		{sqlast.Cmp(sqlast.Call("LENGTH", sqlast.TypeBigInt, sqlast.Text("héllo")), sqlast.OpEq, sqlast.BigInt(5)), True},
		{sqlast.Cmp(sqlast.Call("UPPER", sqlast.TypeText, sqlast.Text("ab")), sqlast.OpEq, sqlast.Text("AB")), True},
		{sqlast.BigInt(2), True},
		{sqlast.BigInt(0), False},
	}
	for i, tc := range cases {
		got, err := ev.Evaluate(tc.expr, sqlast.RowValue{})
		if err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if got != tc.want {
			t.Fatalf("case %d: expected %s, got %s", i, tc.want, got)
		}
	}
}
