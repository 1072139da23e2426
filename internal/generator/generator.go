// Package generator produces random schemas, data and typed expressions.
// Operator and function sets come from the dialect as plain data.
package generator

import (
	"errors"
	"fmt"
	"math/rand"

	"sqlancer/internal/sqlast"
	"sqlancer/internal/ternary"
	"sqlancer/internal/util"
)

// ErrGenerationExhausted is returned when no foldable expression was found
// within the attempt budget.
var ErrGenerationExhausted = errors.New("expression generation exhausted")

// FuncSig describes a scalar function the dialect supports. TypeNull in Args
// or Ret stands for the type being generated.
type FuncSig struct {
	Name        string
	Args        []sqlast.DataType
	Ret         sqlast.DataType
	Variadic    bool
	NumericOnly bool
	TextOnly    bool
}

// Options carries the dialect data and limits the generator works with.
type Options struct {
	MaxDepth    int
	MaxColumns  int
	ColumnTypes []sqlast.DataType
	// CastTargets lists types the dialect can CAST to.
	CastTargets []sqlast.DataType
	Functions   []FuncSig
	// TypeNames spells column types in DDL.
	TypeNames map[sqlast.DataType]string
	// NullSafeEqual enables the <=> operator.
	NullSafeEqual bool
	// AllowDivision enables / and %.
	AllowDivision bool
}

// Generator creates random SQL fragments. It is not safe for concurrent
// use; each worker owns one.
type Generator struct {
	Rand     *rand.Rand
	Opts     Options
	tableSeq int
}

// New constructs a Generator.
func New(r *rand.Rand, opts Options) *Generator {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxColumns < 2 {
		opts.MaxColumns = 2
	}
	if len(opts.ColumnTypes) == 0 {
		opts.ColumnTypes = []sqlast.DataType{sqlast.TypeInt, sqlast.TypeText, sqlast.TypeBoolean}
	}
	return &Generator{Rand: r, Opts: opts}
}

// NextTableName returns a fresh table name.
func (g *Generator) NextTableName() string {
	name := fmt.Sprintf("t%d", g.tableSeq)
	g.tableSeq++
	return name
}

// SetTableSeq continues naming after existing tables.
func (g *Generator) SetTableSeq(n int) {
	g.tableSeq = n
}

// ColumnLeaves turns column references into expression leaves.
func ColumnLeaves(cols []sqlast.ColumnRef) []sqlast.Expr {
	out := make([]sqlast.Expr, 0, len(cols))
	for _, c := range cols {
		out = append(out, c)
	}
	return out
}

// GenerateWithExpected generates expressions of type t over leaves until one
// folds against row, and returns it with its value. Each attempt is an
// independent draw.
func (g *Generator) GenerateWithExpected(leaves []sqlast.Expr, t sqlast.DataType, row sqlast.RowValue, ev *ternary.Evaluator, attempts int) (sqlast.Expr, sqlast.Constant, error) {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		var e sqlast.Expr
		if t == sqlast.TypeBoolean {
			e = g.Predicate(leaves)
		} else {
			e = g.Expression(leaves, t)
		}
		v, err := ev.EvaluateScalar(e, row)
		if err != nil {
			if errors.Is(err, ternary.ErrUnsupportedExpression) {
				continue
			}
			return nil, sqlast.Constant{}, err
		}
		return e, v, nil
	}
	return nil, sqlast.Constant{}, ErrGenerationExhausted
}

// RootType picks the type PQS asks the generator for: usually boolean,
// sometimes the exact type of one of the leaves.
func (g *Generator) RootType(leaves []sqlast.Expr) sqlast.DataType {
	exact := make([]sqlast.DataType, 0, len(leaves))
	for _, l := range leaves {
		if t := l.Type(); !t.IsApprox() && !t.IsTemporal() && t != sqlast.TypeNull {
			exact = append(exact, t)
		}
	}
	if len(exact) == 0 || !util.Chance(g.Rand, NonBooleanRootProb) {
		return sqlast.TypeBoolean
	}
	return util.Pick(g.Rand, exact)
}
