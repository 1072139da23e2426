package oracle

import (
	"context"
	"fmt"
	"math/big"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/util"
)

var tlpAggregates = []string{"MIN", "MAX", "COUNT", "SUM"}

// TLPAggregate partitions an aggregate query. MIN and MAX of the whole
// equal MIN and MAX over the partition results; COUNT and SUM equal the sum
// of the partition results. The partition values are folded here rather
// than by an outer query so the fold cannot share a bug with the engine.
type TLPAggregate struct{}

// Name returns the oracle identifier.
func (TLPAggregate) Name() string { return "tlp_aggregate" }

// Check runs one aggregate partitioning iteration.
func (o TLPAggregate) Check(ctx context.Context, s *Session) Result {
	tables := s.tlpTables()
	if len(tables) == 0 {
		return resultForError(o.Name(), ErrNoTables, nil)
	}
	cols := schema.Columns(tables)
	leaves := generator.ColumnLeaves(cols)
	agg, ok := pickAggregate(s, cols)
	if !ok {
		return resultForError(o.Name(), ErrNoAggregateColumn, nil)
	}
	base := sqlast.NewSelect(schema.Refs(tables)...).
		WithItems(sqlast.SelectItem{Expr: agg, Alias: "agg"})
	p := s.Gen.Predicate(leaves)
	aux := s.auxWhere(leaves)

	baseSQL := s.Printer.Select(base.WithWhere(aux))
	queries := []string{baseSQL}
	for _, part := range Partition(p) {
		queries = append(queries, s.Printer.Select(wherePartition(base, aux, part)))
	}
	details := map[string]any{
		"predicate": s.Printer.Expr(p),
		"aggregate": s.Printer.Expr(agg),
	}
	if aux != nil {
		details["aux_where"] = s.Printer.Expr(aux)
	}
	filter := s.filter(experr.Expression, experr.DivisionByZero, experr.Cast, experr.Join, experr.Aggregate)
	expected, failed := s.Compare.Run(ctx, queries[:1], filter)
	if failed != nil {
		failed.Queries = queries
		return resultForOutcome(o.Name(), *failed, details)
	}
	parts, failed := s.Compare.Run(ctx, queries[1:], filter)
	if failed != nil {
		failed.Queries = queries
		return resultForOutcome(o.Name(), *failed, details)
	}
	folded, err := foldAggregate(agg.Name, parts)
	if err != nil {
		return resultForError(o.Name(), &InvariantError{Msg: err.Error()}, details)
	}
	actual := s.Compare.Canon.ResultSet(&compare.ResultSet{Columns: []string{"agg"}, Rows: []compare.Row{{folded}}})
	return resultForOutcome(o.Name(), compare.CompareSets(expected, actual, compare.Options{}, queries), details)
}

// pickAggregate chooses the aggregate and its argument. MIN, MAX and SUM
// only see exact numeric columns so the fold is exact.
func pickAggregate(s *Session, cols []sqlast.ColumnRef) (sqlast.Aggregate, bool) {
	name := util.Pick(s.Rand, tlpAggregates)
	if name == "COUNT" {
		if util.Chance(s.Rand, 50) {
			return sqlast.Aggregate{Name: name}, true
		}
		return sqlast.Aggregate{Name: name, Arg: util.Pick(s.Rand, cols)}, true
	}
	numeric := make([]sqlast.ColumnRef, 0, len(cols))
	for _, c := range cols {
		if c.DataType.IsInteger() || c.DataType == sqlast.TypeDecimal {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) == 0 {
		return sqlast.Aggregate{}, false
	}
	return sqlast.Aggregate{Name: name, Arg: util.Pick(s.Rand, numeric)}, true
}

// foldAggregate combines the single-value results of the partitions.
// SUM and MIN/MAX of no values are NULL; COUNT of no values is 0.
func foldAggregate(name string, parts *compare.ResultSet) (compare.Value, error) {
	var acc *big.Rat
	for _, row := range parts.Rows {
		if len(row) != 1 {
			return compare.Value{}, fmt.Errorf("aggregate partition returned %d columns", len(row))
		}
		if row[0].Null {
			continue
		}
		v, ok := new(big.Rat).SetString(row[0].S)
		if !ok {
			return compare.Value{}, fmt.Errorf("aggregate partition returned non-numeric %q", row[0].S)
		}
		switch {
		case acc == nil:
			acc = v
		case name == "MIN":
			if v.Cmp(acc) < 0 {
				acc = v
			}
		case name == "MAX":
			if v.Cmp(acc) > 0 {
				acc = v
			}
		default:
			acc.Add(acc, v)
		}
	}
	if acc == nil {
		if name == "COUNT" {
			return compare.Value{S: "0"}, nil
		}
		return compare.Value{Null: true}, nil
	}
	return compare.Value{S: sqlast.RatText(acc)}, nil
}
