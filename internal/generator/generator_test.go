package generator

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/pingcap/tidb/pkg/parser"
	_ "github.com/pingcap/tidb/pkg/types/parser_driver"

	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

func testOptions() Options {
	return Options{
		MaxDepth:   3,
		MaxColumns: 4,
		ColumnTypes: []sqlast.DataType{
			sqlast.TypeBoolean, sqlast.TypeSmallInt, sqlast.TypeInt, sqlast.TypeBigInt,
			sqlast.TypeDecimal, sqlast.TypeText,
		},
		CastTargets: []sqlast.DataType{sqlast.TypeBigInt, sqlast.TypeDecimal, sqlast.TypeText},
		Functions: []FuncSig{
			{Name: "COALESCE", Args: []sqlast.DataType{sqlast.TypeNull, sqlast.TypeNull}, Ret: sqlast.TypeNull, Variadic: true},
			{Name: "ABS", Args: []sqlast.DataType{sqlast.TypeNull}, Ret: sqlast.TypeNull, NumericOnly: true},
			{Name: "UPPER", Args: []sqlast.DataType{sqlast.TypeText}, Ret: sqlast.TypeText},
			{Name: "LENGTH", Args: []sqlast.DataType{sqlast.TypeText}, Ret: sqlast.TypeBigInt},
		},
		TypeNames: map[sqlast.DataType]string{
			sqlast.TypeBoolean:  "BOOLEAN",
			sqlast.TypeSmallInt: "SMALLINT",
			sqlast.TypeInt:      "INT",
			sqlast.TypeBigInt:   "BIGINT",
			sqlast.TypeDecimal:  "DECIMAL(12,2)",
			sqlast.TypeText:     "VARCHAR(64)",
		},
		NullSafeEqual: true,
	}
}

func mysqlPrinter() *sqlast.BasePrinter {
	return sqlast.NewPrinter(sqlast.PrinterOptions{
		CastNames: map[sqlast.DataType]string{
			sqlast.TypeBigInt:  "SIGNED",
			sqlast.TypeDecimal: "DECIMAL(12,2)",
			sqlast.TypeText:    "CHAR",
		},
		FuncNames: map[string]string{"LENGTH": "CHAR_LENGTH"},
	})
}

// randomRow builds a table plus a row of random values for it.
func randomRow(t *testing.T, g *Generator) (schema.Table, sqlast.RowValue) {
	t.Helper()
	tbl := g.GenerateTable()
	cols := tbl.ColumnRefs()
	vals := make([]sqlast.Constant, 0, len(cols))
	for _, c := range tbl.Columns {
		if c.Nullable {
			vals = append(vals, g.Literal(c.Type))
		} else {
			vals = append(vals, g.LiteralValue(c.Type))
		}
	}
	row, err := sqlast.NewRowValue(cols, vals, nil)
	if err != nil {
		t.Fatalf("row value: %v", err)
	}
	return tbl, row
}

func TestPredicateRootIsNeverALeaf(t *testing.T) {
	g := New(rand.New(rand.NewSource(1)), testOptions())
	for i := 0; i < 500; i++ {
		tbl, _ := randomRow(t, g)
		p := g.Predicate(ColumnLeaves(tbl.ColumnRefs()))
		switch p.(type) {
		case sqlast.ColumnRef, sqlast.Constant:
			t.Fatalf("predicate root is a leaf: %#v", p)
		}
		if p.Type() != sqlast.TypeBoolean {
			t.Fatalf("predicate has type %s", p.Type())
		}
	}
}

func TestExpressionDepthIsBounded(t *testing.T) {
	opts := testOptions()
	g := New(rand.New(rand.NewSource(2)), opts)
	for i := 0; i < 500; i++ {
		tbl, _ := randomRow(t, g)
		leaves := ColumnLeaves(tbl.ColumnRefs())
		for _, e := range []sqlast.Expr{g.Predicate(leaves), g.Expression(leaves, sqlast.TypeInt)} {
			if d := sqlast.Depth(e); d > opts.MaxDepth+1 {
				t.Fatalf("depth %d exceeds bound: %s", d, mysqlPrinter().Expr(e))
			}
		}
	}
}

func TestGenerationIsDeterministicPerSeed(t *testing.T) {
	render := func(seed int64) string {
		g := New(rand.New(rand.NewSource(seed)), testOptions())
		var b strings.Builder
		for i := 0; i < 20; i++ {
			tbl := g.GenerateTable()
			b.WriteString(mysqlPrinter().Expr(g.Predicate(ColumnLeaves(tbl.ColumnRefs()))))
			b.WriteByte('\n')
		}
		return b.String()
	}
	if render(42) != render(42) {
		t.Fatalf("same seed produced different expressions")
	}
}

// Every row falls into exactly one of p, NOT p and p IS NULL.
func TestTernaryPartitionIsExhaustive(t *testing.T) {
	g := New(rand.New(rand.NewSource(3)), testOptions())
	ev := ternary.New(ternary.Config{OnlyKnownTypes: true})
	checked := 0
	for i := 0; i < 2000; i++ {
		tbl, row := randomRow(t, g)
		p := g.Predicate(ColumnLeaves(tbl.ColumnRefs()))
		trues := 0
		skip := false
		for _, part := range []sqlast.Expr{p, sqlast.Not(p), sqlast.Is(p, sqlast.OpIsNull)} {
			v, err := ev.Evaluate(part, row)
			if errors.Is(err, ternary.ErrUnsupportedExpression) {
				skip = true
				break
			}
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if v == ternary.True {
				trues++
			}
		}
		if skip {
			continue
		}
		checked++
		if trues != 1 {
			t.Fatalf("%d partitions hold for %s on %s", trues, mysqlPrinter().Expr(p), row)
		}
	}
	if checked == 0 {
		t.Fatalf("no predicate was foldable")
	}
}

func TestGenerateWithExpectedMatchesEvaluator(t *testing.T) {
	g := New(rand.New(rand.NewSource(4)), testOptions())
	ev := ternary.New(ternary.Config{OnlyKnownTypes: true})
	found := 0
	for i := 0; i < 200; i++ {
		tbl, row := randomRow(t, g)
		leaves := ColumnLeaves(tbl.ColumnRefs())
		typ := g.RootType(leaves)
		e, v, err := g.GenerateWithExpected(leaves, typ, row, ev, 20)
		if errors.Is(err, ErrGenerationExhausted) {
			continue
		}
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		found++
		again, err := ev.EvaluateScalar(e, row)
		if err != nil {
			t.Fatalf("re-evaluate: %v", err)
		}
		if again.String() != v.String() {
			t.Fatalf("expected %s, re-evaluated %s", v, again)
		}
	}
	if found == 0 {
		t.Fatalf("no expression folded in 200 rows")
	}
}

func TestGeneratedSQLParses(t *testing.T) {
	g := New(rand.New(rand.NewSource(5)), testOptions())
	pr := mysqlPrinter()
	p := parser.New()
	parse := func(sql string) {
		t.Helper()
		if _, _, err := p.Parse(sql, "", ""); err != nil {
			t.Fatalf("parse failed: %v\nsql=%s", err, sql)
		}
	}
	for i := 0; i < 300; i++ {
		tbl := g.GenerateTable()
		for _, stmt := range g.CreateTableStatements(tbl) {
			parse(stmt)
		}
		parse(g.InsertSQL(&tbl, pr))
		leaves := ColumnLeaves(tbl.ColumnRefs())
		sel := sqlast.NewSelect(tbl.Ref()).
			WithColumns(tbl.ColumnRefs()...).
			WithWhere(g.Predicate(leaves))
		parse(pr.Select(sel))
		parse(pr.Select(sqlast.NewSelect(tbl.Ref()).WithItems(sqlast.SelectItem{Expr: g.Expression(leaves, sqlast.TypeText), Alias: "v"})))
	}
}

func TestInsertSQLAdvancesNextID(t *testing.T) {
	g := New(rand.New(rand.NewSource(6)), testOptions())
	tbl := g.GenerateTable()
	before := tbl.NextID
	sql := g.InsertSQL(&tbl, mysqlPrinter())
	rows := strings.Count(sql, "), (") + 1
	if tbl.NextID != before+int64(rows) {
		t.Fatalf("next id %d after %d rows from %d", tbl.NextID, rows, before)
	}
	if !strings.HasPrefix(sql, "INSERT INTO "+tbl.Name+" (id, c0") {
		t.Fatalf("unexpected insert: %s", sql)
	}
}

func TestCreateIndexSQLMarksColumn(t *testing.T) {
	g := New(rand.New(rand.NewSource(7)), testOptions())
	tbl := schema.Table{Name: "t0", Columns: []schema.Column{
		{Name: "id", Type: sqlast.TypeBigInt},
		{Name: "c0", Type: sqlast.TypeInt},
	}}
	sql, ok := g.CreateIndexSQL(&tbl)
	if !ok || sql != "CREATE INDEX idx_t0_c0 ON t0 (c0)" {
		t.Fatalf("unexpected index statement %q (%v)", sql, ok)
	}
	if !tbl.Columns[1].HasIndex {
		t.Fatalf("column not marked indexed")
	}
	if _, ok := g.CreateIndexSQL(&tbl); ok {
		t.Fatalf("expected no remaining candidates")
	}
}
