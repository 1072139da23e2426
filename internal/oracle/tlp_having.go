package oracle

import (
	"context"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/util"
)

const havingAggregateProb = 30

// TLPHaving partitions a HAVING clause. The baseline groups by every
// fetched column and has no HAVING; each partition adds one of p, NOT p and
// p IS NULL as HAVING. An auxiliary WHERE, when drawn, applies to all four
// queries. No ORDER BY is emitted so the comparison is a multiset one.
type TLPHaving struct{}

// Name returns the oracle identifier.
func (TLPHaving) Name() string { return "tlp_having" }

// Check runs one HAVING partitioning iteration.
func (o TLPHaving) Check(ctx context.Context, s *Session) Result {
	tables := s.tlpTables()
	if len(tables) == 0 {
		return resultForError(o.Name(), ErrNoTables, nil)
	}
	cols := schema.Columns(tables)
	leaves := generator.ColumnLeaves(cols)
	base := sqlast.NewSelect(schema.Refs(tables)...).
		WithColumns(cols...).
		WithGroupBy(leaves...)

	p := s.Gen.Predicate(leaves)
	if util.Chance(s.Rand, havingAggregateProb) {
		count := sqlast.Cmp(sqlast.Aggregate{Name: "COUNT"}, sqlast.OpGe, sqlast.BigInt(int64(1+s.Rand.Intn(3))))
		if util.Chance(s.Rand, 50) {
			p = sqlast.And(p, count)
		} else {
			p = sqlast.Or(p, count)
		}
	}
	return checkPartitions(ctx, s, o.Name(), base, p, leaves, havingPartition, compare.Options{
		Errors: s.filter(experr.Expression, experr.DivisionByZero, experr.Cast, experr.Join,
			experr.GroupBy, experr.Having, experr.Aggregate),
	})
}

func havingPartition(base sqlast.Select, aux, part sqlast.Expr) sqlast.Select {
	return base.WithWhere(aux).WithHaving(part)
}
