package oracle

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

// pivotExec answers the pivot sample with a fixed row and every other
// query according to mode.
type pivotExec struct {
	pivot   compare.Row
	mode    string
	err     error
	queries []string
}

func (f *pivotExec) Query(_ context.Context, query string) (*compare.ResultSet, error) {
	f.queries = append(f.queries, query)
	if strings.Contains(query, "ORDER BY") {
		return &compare.ResultSet{Rows: []compare.Row{f.pivot}}, nil
	}
	switch f.mode {
	case "echo":
		return &compare.ResultSet{Rows: []compare.Row{f.pivot}}, nil
	case "error":
		return nil, f.err
	}
	return &compare.ResultSet{}, nil
}

func fakePQSSession(exec *pivotExec) *Session {
	r := rand.New(rand.NewSource(7))
	state := &schema.State{Tables: []schema.Table{{
		Name: "t0",
		Columns: []schema.Column{
			{Name: "id", Type: sqlast.TypeBigInt},
			{Name: "c0", Type: sqlast.TypeInt, Nullable: true},
			{Name: "c1", Type: sqlast.TypeText, Nullable: true},
		},
		HasPK:    true,
		RowCount: 1,
		NextID:   2,
	}}}
	gen := generator.New(r, generator.Options{
		MaxDepth:    2,
		MaxColumns:  3,
		ColumnTypes: []sqlast.DataType{sqlast.TypeInt, sqlast.TypeText},
	})
	return &Session{
		Exec:    exec,
		Compare: &compare.Comparator{Exec: exec},
		Printer: sqlast.NewPrinter(sqlast.PrinterOptions{}),
		Eval:    ternary.New(ternary.Config{OnlyKnownTypes: true}),
		Gen:     gen,
		State:   state,
		Errors: experr.NewRegistry(map[experr.Group]experr.Rules{
			experr.Expression: {Substrings: []string{"out of range"}},
		}),
		Rand: r,
		Opts: Options{MaxJoinTables: 1, SupportsIsTrue: true, RandomFunc: "RAND()"},
	}
}

func TestPQSReportsMissingPivot(t *testing.T) {
	exec := &pivotExec{pivot: compare.Row{{S: "1"}, {S: "5"}, {Null: true}}}
	s := fakePQSSession(exec)
	res := PQS{}.Check(context.Background(), s)
	if res.Kind != Finding || res.OK {
		t.Fatalf("expected finding, got %+v", res)
	}
	if len(res.SQL) != 3 || !strings.Contains(res.SQL[0], "ORDER BY RAND() LIMIT 1") {
		t.Fatalf("expected pivot, query and containment sql, got %v", res.SQL)
	}
	if !strings.HasPrefix(res.Actual, "pivot_row_missing") {
		t.Fatalf("unexpected actual %q", res.Actual)
	}
	for _, key := range []string{"pivot_values", "rectified_predicate", "containment_query"} {
		if _, ok := res.Details[key]; !ok {
			t.Fatalf("missing detail %s", key)
		}
	}
}

func TestPQSPassesWhenPivotReturned(t *testing.T) {
	exec := &pivotExec{pivot: compare.Row{{S: "1"}, {S: "5"}, {S: "ab"}}, mode: "echo"}
	s := fakePQSSession(exec)
	for i := 0; i < 20; i++ {
		res := PQS{}.Check(context.Background(), s)
		if res.Kind == Finding {
			t.Fatalf("unexpected finding %+v", res)
		}
	}
}

func TestPQSClassifiesQueryErrors(t *testing.T) {
	exec := &pivotExec{pivot: compare.Row{{S: "1"}, {S: "5"}, {S: "ab"}}, mode: "error", err: errors.New("BIGINT value is out of range")}
	res := PQS{}.Check(context.Background(), fakePQSSession(exec))
	if res.Kind != Skip || res.SkipReason() != "pqs:expected_error" {
		t.Fatalf("expected expected_error skip, got %+v", res)
	}

	exec = &pivotExec{pivot: compare.Row{{S: "1"}, {S: "5"}, {S: "ab"}}, mode: "error", err: errors.New("lost connection")}
	res = PQS{}.Check(context.Background(), fakePQSSession(exec))
	if res.Kind != Finding {
		t.Fatalf("expected finding, got %+v", res)
	}
	if len(res.SQL) != 2 || res.SQL[0] != exec.queries[0] {
		t.Fatalf("expected pivot and failing query, got %v", res.SQL)
	}
}

func TestPQSSkipsWhenPivotEmpty(t *testing.T) {
	exec := &pivotExec{}
	s := fakePQSSession(exec)
	s.Exec = emptyExec{}
	res := PQS{}.Check(context.Background(), s)
	if res.SkipReason() != "pqs:no_rows" {
		t.Fatalf("expected no_rows skip, got %+v", res)
	}
}

type emptyExec struct{}

func (emptyExec) Query(context.Context, string) (*compare.ResultSet, error) {
	return &compare.ResultSet{}, nil
}

func TestRectifyMakesPredicateTrue(t *testing.T) {
	ev := ternary.New(ternary.Config{OnlyKnownTypes: true})
	a := sqlast.Col("t0", "a", sqlast.TypeInt)
	p := sqlast.Cmp(a, sqlast.OpGt, sqlast.BigInt(0))
	for _, v := range []sqlast.Constant{sqlast.MustInt(sqlast.TypeInt, 5), sqlast.MustInt(sqlast.TypeInt, -5), sqlast.NullOf(sqlast.TypeInt)} {
		row, err := sqlast.NewRowValue([]sqlast.ColumnRef{a}, []sqlast.Constant{v}, nil)
		if err != nil {
			t.Fatalf("row: %v", err)
		}
		truth, err := ev.Evaluate(p, row)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		for _, isTrue := range []bool{true, false} {
			got, err := ev.Evaluate(Rectify(p, truth, isTrue), row)
			if err != nil || got != ternary.True {
				t.Fatalf("rectified %s (is_true=%v) gave %s (%v)", truth, isTrue, got, err)
			}
		}
	}
}

func TestRectifyShapes(t *testing.T) {
	p := sqlast.Cmp(sqlast.Col("t0", "a", sqlast.TypeInt), sqlast.OpGt, sqlast.BigInt(0))
	pr := sqlast.NewPrinter(sqlast.PrinterOptions{})
	cases := []struct {
		truth  ternary.Truth
		isTrue bool
		want   string
	}{
		{ternary.True, true, "((t0.a > 0) IS TRUE)"},
		{ternary.True, false, "(t0.a > 0)"},
		{ternary.False, true, "((t0.a > 0) IS FALSE)"},
		{ternary.False, false, "(NOT (t0.a > 0))"},
		{ternary.Unknown, true, "((t0.a > 0) IS NULL)"},
	}
	for _, tc := range cases {
		if got := pr.Expr(Rectify(p, tc.truth, tc.isTrue)); got != tc.want {
			t.Fatalf("%s/%v: expected %s, got %s", tc.truth, tc.isTrue, tc.want, got)
		}
	}
}

func TestPredicateForNonBooleanRoot(t *testing.T) {
	a := sqlast.Col("t0", "a", sqlast.TypeInt)
	pr := sqlast.NewPrinter(sqlast.PrinterOptions{})
	if got := pr.Expr(predicateFor(a, sqlast.MustInt(sqlast.TypeInt, 12))); got != "(t0.a = 12)" {
		t.Fatalf("unexpected predicate %s", got)
	}
	if got := pr.Expr(predicateFor(a, sqlast.NullOf(sqlast.TypeInt))); got != "(t0.a IS NULL)" {
		t.Fatalf("unexpected predicate %s", got)
	}
	boolExpr := sqlast.Cmp(a, sqlast.OpLt, sqlast.BigInt(3))
	if predicateFor(boolExpr, sqlast.Bool(true)) != boolExpr {
		t.Fatalf("boolean root must be kept")
	}
}

type failingExec struct{ err error }

func (f failingExec) Query(context.Context, string) (*compare.ResultSet, error) { return nil, f.err }

func TestPQSClassifiesPivotSampleErrors(t *testing.T) {
	s := fakePQSSession(&pivotExec{})
	s.Exec = failingExec{err: errors.New("BIGINT value is out of range")}
	res := PQS{}.Check(context.Background(), s)
	if res.SkipReason() != "pqs:expected_error" {
		t.Fatalf("expected expected_error skip, got %+v", res)
	}
	pivot, _ := res.Details["pivot_query"].(string)
	if !strings.Contains(pivot, "ORDER BY RAND() LIMIT 1") {
		t.Fatalf("expected the pivot query in details, got %q", pivot)
	}

	s.Exec = failingExec{err: errors.New("lost connection")}
	res = PQS{}.Check(context.Background(), s)
	if res.Kind != Finding || len(res.SQL) != 1 || res.SQL[0] != pivot {
		t.Fatalf("expected finding on the pivot query, got %+v", res)
	}
}
