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

// TLPWhere implements Ternary Logic Partitioning on WHERE.
//
// A predicate p splits every row into exactly one of
//
//	p, NOT p, and p IS NULL
//
// so the concatenation of the three filtered queries must equal the
// unfiltered query as a multiset:
//
//	Q:  SELECT t0.c0 AS t0_c0 FROM t0
//	Q': SELECT t0.c0 AS t0_c0 FROM t0 WHERE (t0.c0 > 0)
//	    SELECT t0.c0 AS t0_c0 FROM t0 WHERE (NOT (t0.c0 > 0))
//	    SELECT t0.c0 AS t0_c0 FROM t0 WHERE ((t0.c0 > 0) IS NULL)
type TLPWhere struct{}

// Name returns the oracle identifier.
func (TLPWhere) Name() string { return "tlp_where" }

// Check runs one WHERE partitioning iteration.
func (o TLPWhere) Check(ctx context.Context, s *Session) Result {
	tables := s.tlpTables()
	if len(tables) == 0 {
		return resultForError(o.Name(), ErrNoTables, nil)
	}
	leaves := generator.ColumnLeaves(schema.Columns(tables))
	base := sqlast.NewSelect(schema.Refs(tables)...).WithColumns(schema.Columns(tables)...)
	return checkPartitions(ctx, s, o.Name(), base, s.Gen.Predicate(leaves), leaves, wherePartition, compare.Options{
		Errors: s.filter(experr.Expression, experr.DivisionByZero, experr.Cast, experr.Join),
	})
}

// Partition returns p, NOT p and p IS NULL. Under three-valued logic every
// row satisfies exactly one of them.
func Partition(p sqlast.Expr) [3]sqlast.Expr {
	return [3]sqlast.Expr{p, sqlast.Not(p), sqlast.Is(p, sqlast.OpIsNull)}
}

// partitionFunc applies an auxiliary filter and a partition predicate to
// the baseline query.
type partitionFunc func(base sqlast.Select, aux, part sqlast.Expr) sqlast.Select

func wherePartition(base sqlast.Select, aux, part sqlast.Expr) sqlast.Select {
	return base.WithWhere(sqlast.And(aux, part))
}

// checkPartitions runs the baseline against the concatenated partitions of p.
func checkPartitions(ctx context.Context, s *Session, name string, base sqlast.Select, p sqlast.Expr, leaves []sqlast.Expr, apply partitionFunc, opts compare.Options) Result {
	aux := s.auxWhere(leaves)
	baseline := base.WithWhere(aux)
	parts := Partition(p)
	secondary := make([]string, 0, len(parts))
	for _, part := range parts {
		secondary = append(secondary, s.Printer.Select(apply(base, aux, part)))
	}
	details := map[string]any{"predicate": s.Printer.Expr(p)}
	if aux != nil {
		details["aux_where"] = s.Printer.Expr(aux)
	}
	out := s.Compare.Compare(ctx, []string{s.Printer.Select(baseline)}, secondary, opts)
	return resultForOutcome(name, out, details)
}

// tlpTables picks the FROM list. Empty tables are fine for TLP.
func (s *Session) tlpTables() []schema.Table {
	return schema.RandomTables(s.Rand, s.State.BaseTables(), s.maxJoinTables())
}

func (s *Session) auxWhere(leaves []sqlast.Expr) sqlast.Expr {
	if !util.Chance(s.Rand, s.Opts.AuxWhereProb) {
		return nil
	}
	return s.Gen.Predicate(leaves)
}
