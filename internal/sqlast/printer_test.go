package sqlast

import (
	"errors"
	"testing"
)

func TestPrinterSelect(t *testing.T) {
	a := Col("t0", "c0", TypeInt)
	q := NewSelect(TableRef{Name: "t0"}).
		WithColumns(a).
		WithWhere(Is(Cmp(a, OpGt, BigInt(0)), OpIsNull)).
		WithLimit(1)
	p := NewPrinter(PrinterOptions{})
	got := p.Select(q)
	want := "SELECT t0.c0 AS t0_c0 FROM t0 WHERE ((t0.c0 > 0) IS NULL) LIMIT 1"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPrinterDialectOptions(t *testing.T) {
	p := NewPrinter(PrinterOptions{
		IdentQuote:    "\"",
		TrueLiteral:   "1",
		FalseLiteral:  "0",
		NullSafeEqual: "IS",
		FuncNames:     map[string]string{"LENGTH": "length"},
		CastNames:     map[DataType]string{TypeBigInt: "INTEGER"},
	})
	a := Col("t0", "c0", TypeText)
	e := And(
		Cmp(Call("LENGTH", TypeBigInt, a), OpNullSafe, Cast{Expr: Bool(true), To: TypeBigInt}),
		InList(Text("it's"), true, a, Null()),
	)
	got := p.Expr(e)
	want := `((length("t0"."c0") IS CAST(1 AS INTEGER)) AND ('it''s' NOT IN ("t0"."c0", NULL)))`
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPrinterNegativeLiteralsNeverFormComments(t *testing.T) {
	p := NewPrinter(PrinterOptions{})
	got := p.Expr(Cmp(BigInt(1), OpSub, Unary{Op: OpNeg, Expr: BigInt(-1)}))
	if got != "(1 - (- -1))" {
		t.Fatalf("unexpected rendering %s", got)
	}
}

func TestSelectBuilderIsImmutable(t *testing.T) {
	a := Col("t0", "c0", TypeInt)
	base := NewSelect(TableRef{Name: "t0"}).WithColumns(a)
	items := base.Items()
	items[0].Alias = "changed"
	withWhere := base.WithWhere(Cmp(a, OpEq, BigInt(1)))
	if base.Where() != nil {
		t.Fatalf("base select was mutated")
	}
	if withWhere.Where() == nil {
		t.Fatalf("expected where on copy")
	}
	if base.Items()[0].Alias != "t0_c0" {
		t.Fatalf("items slice leaked: %s", base.Items()[0].Alias)
	}
	grouped := base.WithGroupBy(a)
	grouped2 := grouped.WithGroupBy(a, a)
	if len(grouped.GroupBy()) != 1 || len(grouped2.GroupBy()) != 2 {
		t.Fatalf("group by copies interfered")
	}
}

func TestRowValueGet(t *testing.T) {
	a := Col("t0", "c0", TypeInt)
	rv, err := NewRowValue([]ColumnRef{a}, []Constant{BigInt(-1)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := rv.Get(a)
	if err != nil || v.Int64() != -1 {
		t.Fatalf("expected -1, got %v %v", v, err)
	}
	if _, err := rv.Get(Col("t1", "c0", TypeInt)); !errors.Is(err, ErrStaleRowValue) {
		t.Fatalf("expected ErrStaleRowValue, got %v", err)
	}
	if _, err := NewRowValue([]ColumnRef{a}, nil, nil); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestDepthAndColumns(t *testing.T) {
	a := Col("t0", "c0", TypeInt)
	b := Col("t0", "c1", TypeInt)
	e := And(Cmp(a, OpGt, b), Is(a, OpIsNull))
	if d := Depth(e); d != 3 {
		t.Fatalf("expected depth 3, got %d", d)
	}
	cols := Columns(e)
	if len(cols) != 2 || cols[0].Name != "c0" || cols[1].Name != "c1" {
		t.Fatalf("unexpected columns %v", cols)
	}
}
