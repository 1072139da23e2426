package oracle

import (
	"context"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/generator"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
)

// TLPDistinct partitions a SELECT DISTINCT. A row value can land in more
// than one partition's output once duplicates are folded, so both sides
// are compared as sets.
type TLPDistinct struct{}

// Name returns the oracle identifier.
func (TLPDistinct) Name() string { return "tlp_distinct" }

// Check runs one DISTINCT partitioning iteration.
func (o TLPDistinct) Check(ctx context.Context, s *Session) Result {
	tables := s.tlpTables()
	if len(tables) == 0 {
		return resultForError(o.Name(), ErrNoTables, nil)
	}
	cols := schema.Columns(tables)
	base := sqlast.NewSelect(schema.Refs(tables)...).
		WithDistinct(true).
		WithColumns(cols...)
	leaves := generator.ColumnLeaves(cols)
	return checkPartitions(ctx, s, o.Name(), base, s.Gen.Predicate(leaves), leaves, wherePartition, compare.Options{
		Set:    true,
		Errors: s.filter(experr.Expression, experr.DivisionByZero, experr.Cast, experr.Join),
	})
}
