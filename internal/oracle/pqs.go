package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sqlancer/internal/compare"
	"sqlancer/internal/experr"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
)

// PQS implements Pivoted Query Synthesis.
//
// It samples one pivot row over a cross join, generates an expression the
// evaluator can fold against that row, rectifies it so it is TRUE for the
// pivot, and checks that the database returns the pivot row:
//
//	pivot: t0.c0 = 1, t0.c1 = NULL
//	expr:  (t0.c0 > t0.c1)            -- UNKNOWN for the pivot
//	query: SELECT ... FROM t0 WHERE ((t0.c0 > t0.c1) IS NULL)
type PQS struct{}

// Name returns the oracle identifier.
func (PQS) Name() string { return "pqs" }

// Check runs one PQS iteration.
func (o PQS) Check(ctx context.Context, s *Session) Result {
	filter := s.filter(experr.Expression, experr.DivisionByZero, experr.Cast, experr.Join)
	tables := s.State.RandomNonEmptyTables(s.Rand, s.maxJoinTables())
	if len(tables) == 0 {
		return resultForError(o.Name(), ErrNoTables, nil)
	}
	row, pivotSQL, err := schema.SampleRow(ctx, filteredExec{s: s, filter: filter}, s.Printer, s.Opts.RandomFunc, tables)
	if err != nil {
		return resultForError(o.Name(), err, map[string]any{"pivot_query": pivotSQL})
	}
	details := map[string]any{
		"pivot_query":  pivotSQL,
		"pivot_values": row.String(),
	}

	leaves := leavesOf(row)
	expr, value, err := s.Gen.GenerateWithExpected(leaves, s.Gen.RootType(leaves), row, s.Eval, s.attempts())
	if err != nil {
		return resultForError(o.Name(), err, details)
	}
	pred := predicateFor(expr, value)
	truth, err := s.Eval.Evaluate(pred, row)
	if err != nil {
		return resultForError(o.Name(), err, details)
	}
	rectified := Rectify(pred, truth, s.Opts.SupportsIsTrue)
	if check, err := s.Eval.Evaluate(rectified, row); err != nil || check != ternary.True {
		return resultForError(o.Name(), &InvariantError{
			Msg: fmt.Sprintf("rectified predicate %s is %s for the pivot (%v)", s.Printer.Expr(rectified), check, err),
		}, details)
	}

	query := s.Printer.Select(sqlast.NewSelect(schema.Refs(tables)...).
		WithColumns(row.Columns()...).
		WithWhere(rectified))
	containSQL := containmentQuery(s.Printer, query, row)
	details["pqs_predicate"] = s.Printer.Expr(pred)
	details["pqs_truth"] = truth.String()
	details["rectified_predicate"] = s.Printer.Expr(rectified)
	details["containment_query"] = containSQL

	got, err := s.query(ctx, query, filter)
	if err != nil {
		var unexpected *UnexpectedDatabaseError
		if errors.As(err, &unexpected) {
			unexpected.Queries = []string{pivotSQL, query}
		}
		return resultForError(o.Name(), err, details)
	}
	got = s.Compare.Canon.ResultSet(got)
	pivot := s.Compare.Canon.Row(pivotRow(row))
	if !compare.Contains(got, pivot) {
		return Result{
			Oracle:   o.Name(),
			Kind:     Finding,
			SQL:      []string{pivotSQL, query, containSQL},
			Expected: "pivot_row_present: " + pivot.String(),
			Actual:   "pivot_row_missing\n" + formatResultSet(got),
			Details:  details,
		}
	}
	return Result{OK: true, Oracle: o.Name(), Kind: Pass, SQL: []string{query}, Details: details}
}

// Rectify wraps pred so it is TRUE for a row on which pred evaluates to t.
// Without IS TRUE support the TRUE case stays bare and FALSE becomes NOT.
func Rectify(pred sqlast.Expr, t ternary.Truth, supportsIsTrue bool) sqlast.Expr {
	switch t {
	case ternary.True:
		if supportsIsTrue {
			return sqlast.Is(pred, sqlast.OpIsTrue)
		}
		return pred
	case ternary.False:
		if supportsIsTrue {
			return sqlast.Is(pred, sqlast.OpIsFalse)
		}
		return sqlast.Not(pred)
	default:
		return sqlast.Is(pred, sqlast.OpIsNull)
	}
}

// predicateFor turns a non-boolean root into a comparison with its value.
func predicateFor(expr sqlast.Expr, value sqlast.Constant) sqlast.Expr {
	if expr.Type() == sqlast.TypeBoolean {
		return expr
	}
	if value.IsNull() {
		return sqlast.Is(expr, sqlast.OpIsNull)
	}
	return sqlast.Cmp(expr, sqlast.OpEq, value)
}

func leavesOf(row sqlast.RowValue) []sqlast.Expr {
	cols := row.Columns()
	out := make([]sqlast.Expr, 0, len(cols))
	for _, c := range cols {
		out = append(out, c)
	}
	return out
}

// pivotRow renders the pivot the way the driver returned it.
func pivotRow(row sqlast.RowValue) compare.Row {
	out := make(compare.Row, row.Len())
	for i := range out {
		if row.Value(i).IsNull() {
			out[i] = compare.Value{Null: true}
			continue
		}
		out[i] = compare.Value{S: row.Raw(i)}
	}
	return out
}

// containmentQuery counts the pivot inside the result of query. It is kept
// for reproduction only.
func containmentQuery(p sqlast.Printer, query string, row sqlast.RowValue) string {
	cols := row.Columns()
	conds := make([]string, 0, len(cols))
	for i, c := range cols {
		ref := sqlast.Col("pqs", c.Alias(), c.DataType)
		v := row.Value(i)
		if v.IsNull() {
			conds = append(conds, p.Expr(sqlast.Is(ref, sqlast.OpIsNull)))
			continue
		}
		conds = append(conds, p.Expr(sqlast.Cmp(ref, sqlast.OpEq, v)))
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) pqs WHERE %s", query, strings.Join(conds, " AND "))
}
