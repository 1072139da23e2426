package schema

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"sqlancer/internal/compare"
	"sqlancer/internal/sqlast"
)

type scriptedExec struct {
	match map[string]*compare.ResultSet
	seen  []string
}

func (s *scriptedExec) Query(_ context.Context, q string) (*compare.ResultSet, error) {
	s.seen = append(s.seen, q)
	for frag, rs := range s.match {
		if strings.Contains(q, frag) {
			return rs, nil
		}
	}
	return &compare.ResultSet{}, nil
}

func cell(s string) compare.Value { return compare.Value{S: s} }

func TestProviderRefresh(t *testing.T) {
	exec := &scriptedExec{match: map[string]*compare.ResultSet{
		"LIST_TABLES":      {Rows: []compare.Row{{cell("t0"), cell("BASE TABLE")}, {cell("v0"), cell("VIEW")}}},
		"COLS t0":          {Rows: []compare.Row{{cell("id"), cell("bigint"), cell("NO")}, {cell("c0"), cell("int"), cell("YES")}, {cell("c1"), cell("geometry"), cell("YES")}}},
		"COLS v0":          {Rows: []compare.Row{{cell("c0"), cell("int"), cell("YES")}}},
		"COUNT(*) FROM t0": {Rows: []compare.Row{{cell("3")}}},
	}}
	p := &Provider{
		Exec:    exec,
		Printer: sqlast.NewPrinter(sqlast.PrinterOptions{}),
		Intro: Introspection{
			TablesQuery:  "LIST_TABLES",
			ColumnsQuery: func(table string) string { return "COLS " + table },
			ParseType: func(declared string) (sqlast.DataType, bool) {
				switch declared {
				case "int":
					return sqlast.TypeInt, true
				case "bigint":
					return sqlast.TypeBigInt, true
				}
				return sqlast.TypeNull, false
			},
		},
	}
	state, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(state.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(state.Tables))
	}
	t0 := state.Tables[0]
	if len(t0.Columns) != 2 || !t0.HasPK || t0.RowCount != 3 || t0.NextID != 4 {
		t.Fatalf("unexpected table %+v", t0)
	}
	if t0.Columns[0].Nullable || !t0.Columns[1].Nullable {
		t.Fatalf("nullability not read: %+v", t0.Columns)
	}
	if !state.Tables[1].IsView {
		t.Fatalf("expected v0 to be a view")
	}
	if got := state.NonEmptyTables(); len(got) != 1 || got[0].Name != "t0" {
		t.Fatalf("unexpected non-empty tables %v", got)
	}
}

func TestSampleRow(t *testing.T) {
	t0 := Table{Name: "t0", Columns: []Column{{Name: "c0", Type: sqlast.TypeInt}, {Name: "c1", Type: sqlast.TypeText}}}
	exec := &scriptedExec{match: map[string]*compare.ResultSet{
		"ORDER BY RANDOM()": {Rows: []compare.Row{{cell("-1"), {Null: true}}}},
	}}
	p := sqlast.NewPrinter(sqlast.PrinterOptions{})
	rv, query, err := SampleRow(context.Background(), exec, p, "RANDOM()", []Table{t0})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	want := "SELECT t0.c0 AS t0_c0, t0.c1 AS t0_c1 FROM t0 ORDER BY RANDOM() LIMIT 1"
	if query != want {
		t.Fatalf("expected %s, got %s", want, query)
	}
	v, err := rv.Get(sqlast.Col("t0", "c0", sqlast.TypeInt))
	if err != nil || v.Int64() != -1 {
		t.Fatalf("expected -1, got %v %v", v, err)
	}
	v, err = rv.Get(sqlast.Col("t0", "c1", sqlast.TypeText))
	if err != nil || !v.IsNull() || v.Type() != sqlast.TypeText {
		t.Fatalf("expected typed NULL, got %v %v", v, err)
	}

	empty := &scriptedExec{}
	if _, _, err := SampleRow(context.Background(), empty, p, "RANDOM()", []Table{t0}); !errors.Is(err, ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestRandomTablesBounds(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tables := []Table{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	for i := 0; i < 100; i++ {
		got := RandomTables(r, tables, 2)
		if len(got) < 1 || len(got) > 2 {
			t.Fatalf("expected 1..2 tables, got %d", len(got))
		}
		if len(got) == 2 && got[0].Name == got[1].Name {
			t.Fatalf("duplicate table picked")
		}
	}
	if RandomTables(r, nil, 3) != nil {
		t.Fatalf("expected nil for no candidates")
	}
}
