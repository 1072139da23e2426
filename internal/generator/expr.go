package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sqlancer/internal/sqlast"
	"sqlancer/internal/util"
)

type typeClass int

const (
	classBool typeClass = iota
	classInt
	classDecimal
	classApprox
	classText
	classDate
	classDatetime
)

func classOf(t sqlast.DataType) typeClass {
	switch {
	case t == sqlast.TypeBoolean:
		return classBool
	case t.IsInteger():
		return classInt
	case t == sqlast.TypeDecimal:
		return classDecimal
	case t.IsApprox():
		return classApprox
	case t == sqlast.TypeText:
		return classText
	case t == sqlast.TypeDate:
		return classDate
	default:
		return classDatetime
	}
}

var comparisonOps = []sqlast.BinaryOp{sqlast.OpEq, sqlast.OpNe, sqlast.OpLt, sqlast.OpLe, sqlast.OpGt, sqlast.OpGe}

var postfixOps = []sqlast.PostfixOp{
	sqlast.OpIsNull, sqlast.OpIsNotNull,
	sqlast.OpIsTrue, sqlast.OpIsFalse, sqlast.OpIsNotTrue, sqlast.OpIsNotFalse,
}

// Predicate returns a random boolean expression whose root is an operator.
func (g *Generator) Predicate(leaves []sqlast.Expr) sqlast.Expr {
	return g.boolExpr(leaves, 0, true)
}

// Expression returns a random expression producing type t.
func (g *Generator) Expression(leaves []sqlast.Expr, t sqlast.DataType) sqlast.Expr {
	return g.expr(leaves, t, 0)
}

func (g *Generator) expr(leaves []sqlast.Expr, t sqlast.DataType, depth int) sqlast.Expr {
	if t == sqlast.TypeBoolean {
		return g.boolExpr(leaves, depth, false)
	}
	if depth >= g.Opts.MaxDepth || util.Chance(g.Rand, LeafProb) {
		return g.leaf(leaves, t)
	}
	switch classOf(t) {
	case classInt, classDecimal, classApprox:
		return g.numericExpr(leaves, t, depth)
	case classText:
		return g.textExpr(leaves, depth)
	default:
		return g.leaf(leaves, t)
	}
}

func (g *Generator) boolExpr(leaves []sqlast.Expr, depth int, root bool) sqlast.Expr {
	if !root && (depth >= g.Opts.MaxDepth || util.Chance(g.Rand, LeafProb)) {
		return g.leaf(leaves, sqlast.TypeBoolean)
	}
	next := depth + 1
	// not, and/or, comparison, IS, BETWEEN, IN, null-safe equality
	weights := []int{10, 20, 35, 15, 8, 8, 0}
	if g.Opts.NullSafeEqual {
		weights[6] = 6
	}
	switch util.PickWeighted(g.Rand, weights) {
	case 0:
		return sqlast.Not(g.boolExpr(leaves, next, false))
	case 1:
		op := sqlast.OpAnd
		if util.Chance(g.Rand, 50) {
			op = sqlast.OpOr
		}
		return sqlast.Cmp(g.boolExpr(leaves, next, false), op, g.boolExpr(leaves, next, false))
	case 2:
		t := g.operandType(leaves)
		op := util.Pick(g.Rand, comparisonOps)
		return sqlast.Cmp(g.expr(leaves, t, next), op, g.expr(leaves, t, next))
	case 3:
		op := util.Pick(g.Rand, postfixOps)
		if op == sqlast.OpIsNull || op == sqlast.OpIsNotNull {
			return sqlast.Is(g.expr(leaves, g.operandType(leaves), next), op)
		}
		return sqlast.Is(g.boolExpr(leaves, next, false), op)
	case 4:
		t := g.operandType(leaves)
		return sqlast.Between{
			Expr: g.expr(leaves, t, next),
			Lo:   g.expr(leaves, t, next),
			Hi:   g.expr(leaves, t, next),
			Not:  util.Chance(g.Rand, 30),
		}
	case 5:
		t := g.operandType(leaves)
		n := 1 + g.Rand.Intn(InListMax)
		list := make([]sqlast.Expr, 0, n)
		for i := 0; i < n; i++ {
			list = append(list, g.expr(leaves, t, next))
		}
		return sqlast.InList(g.expr(leaves, t, next), util.Chance(g.Rand, 30), list...)
	default:
		t := g.operandType(leaves)
		return sqlast.Cmp(g.expr(leaves, t, next), sqlast.OpNullSafe, g.expr(leaves, t, next))
	}
}

// operandType picks the type compared by a predicate, preferring the types
// of the available leaves so predicates reference columns.
func (g *Generator) operandType(leaves []sqlast.Expr) sqlast.DataType {
	if len(leaves) > 0 && util.Chance(g.Rand, 80) {
		return util.Pick(g.Rand, leaves).Type()
	}
	return util.Pick(g.Rand, g.Opts.ColumnTypes)
}

func (g *Generator) numericExpr(leaves []sqlast.Expr, t sqlast.DataType, depth int) sqlast.Expr {
	next := depth + 1
	// unary, arithmetic, function, cast
	switch util.PickWeighted(g.Rand, []int{15, 45, 25, 15}) {
	case 0:
		op := sqlast.OpNeg
		if util.Chance(g.Rand, 30) {
			op = sqlast.OpPlus
		}
		return sqlast.Unary{Op: op, Expr: g.expr(leaves, t, next)}
	case 1:
		ops := []sqlast.BinaryOp{sqlast.OpAdd, sqlast.OpSub, sqlast.OpMul}
		if g.Opts.AllowDivision {
			ops = append(ops, sqlast.OpDiv, sqlast.OpMod)
		}
		return sqlast.Cmp(g.expr(leaves, t, next), util.Pick(g.Rand, ops), g.expr(leaves, t, next))
	case 2:
		if e, ok := g.funcExpr(leaves, t, next); ok {
			return e
		}
	case 3:
		if e, ok := g.castExpr(leaves, t, next); ok {
			return e
		}
	}
	return g.leaf(leaves, t)
}

func (g *Generator) textExpr(leaves []sqlast.Expr, depth int) sqlast.Expr {
	next := depth + 1
	if util.Chance(g.Rand, 70) {
		if e, ok := g.funcExpr(leaves, sqlast.TypeText, next); ok {
			return e
		}
	}
	if e, ok := g.castExpr(leaves, sqlast.TypeText, next); ok {
		return e
	}
	return g.leaf(leaves, sqlast.TypeText)
}

func (g *Generator) funcExpr(leaves []sqlast.Expr, t sqlast.DataType, depth int) (sqlast.Expr, bool) {
	candidates := make([]FuncSig, 0, len(g.Opts.Functions))
	for _, sig := range g.Opts.Functions {
		if sigReturns(sig, t) {
			candidates = append(candidates, sig)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sig := util.Pick(g.Rand, candidates)
	ret := sig.Ret
	if ret == sqlast.TypeNull {
		ret = t
	}
	argTypes := append([]sqlast.DataType(nil), sig.Args...)
	if sig.Variadic && len(argTypes) > 0 {
		for extra := g.Rand.Intn(2); extra > 0; extra-- {
			argTypes = append(argTypes, argTypes[len(argTypes)-1])
		}
	}
	args := make([]sqlast.Expr, 0, len(argTypes))
	for _, a := range argTypes {
		if a == sqlast.TypeNull {
			a = t
		}
		args = append(args, g.expr(leaves, a, depth))
	}
	return sqlast.Call(sig.Name, ret, args...), true
}

func sigReturns(sig FuncSig, t sqlast.DataType) bool {
	if sig.NumericOnly && !t.IsNumeric() {
		return false
	}
	if sig.TextOnly && t != sqlast.TypeText {
		return false
	}
	if sig.Ret == sqlast.TypeNull {
		return true
	}
	return classOf(sig.Ret) == classOf(t)
}

func (g *Generator) castExpr(leaves []sqlast.Expr, t sqlast.DataType, depth int) (sqlast.Expr, bool) {
	castable := false
	for _, c := range g.Opts.CastTargets {
		if c == t {
			castable = true
			break
		}
	}
	if !castable {
		return nil, false
	}
	src := util.Pick(g.Rand, g.Opts.ColumnTypes)
	if src == sqlast.TypeText && t != sqlast.TypeText && util.Chance(g.Rand, 60) {
		// numeric text exercises the parsing path of the cast
		return sqlast.Cast{Expr: sqlast.Text(strconv.Itoa(g.Rand.Intn(2*IntLiteralMax) - IntLiteralMax)), To: t}, true
	}
	return sqlast.Cast{Expr: g.expr(leaves, src, depth), To: t}, true
}

func (g *Generator) leaf(leaves []sqlast.Expr, t sqlast.DataType) sqlast.Expr {
	if util.Chance(g.Rand, ColumnLeafProb) {
		want := classOf(t)
		matches := make([]sqlast.Expr, 0, len(leaves))
		for _, l := range leaves {
			if classOf(l.Type()) == want {
				matches = append(matches, l)
			}
		}
		if len(matches) > 0 {
			return util.Pick(g.Rand, matches)
		}
	}
	return g.Literal(t)
}

// Literal returns a random constant of type t, occasionally NULL.
func (g *Generator) Literal(t sqlast.DataType) sqlast.Constant {
	if util.Chance(g.Rand, NullLiteralProb) {
		return sqlast.NullOf(t)
	}
	return g.LiteralValue(t)
}

// LiteralValue returns a random non-NULL constant of type t.
func (g *Generator) LiteralValue(t sqlast.DataType) sqlast.Constant {
	switch {
	case t == sqlast.TypeBoolean:
		return sqlast.Bool(util.Chance(g.Rand, 50))
	case t.IsInteger():
		return g.intLiteral(t)
	case t == sqlast.TypeDecimal:
		whole := g.Rand.Intn(2*DecimalLiteralMax) - DecimalLiteralMax
		frac := g.Rand.Intn(100)
		text := fmt.Sprintf("%d.%02d", whole, frac)
		if whole == 0 && util.Chance(g.Rand, 50) {
			text = "-" + text
		}
		c, err := sqlast.Decimal(text)
		if err != nil {
			return sqlast.NullOf(t)
		}
		return c
	case t == sqlast.TypeFloat:
		return sqlast.Float(float64(g.Rand.Intn(20000)-10000) / 100)
	case t == sqlast.TypeDouble:
		return sqlast.Double(float64(g.Rand.Intn(2000000)-1000000) / 1000)
	case t == sqlast.TypeText:
		n := g.Rand.Intn(StringLiteralLenMax + 1)
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte(stringAlphabet[g.Rand.Intn(len(stringAlphabet))])
		}
		return sqlast.Text(b.String())
	case t == sqlast.TypeDate:
		c, _ := sqlast.Date(util.RandDate(g.Rand, DateYearMin, DateYearMax).Format("2006-01-02"))
		return c
	case t == sqlast.TypeDatetime:
		day := util.RandDate(g.Rand, DateYearMin, DateYearMax)
		ts := day.Add(time.Duration(g.Rand.Intn(24*60*60)) * time.Second)
		c, _ := sqlast.Datetime(ts.Format("2006-01-02 15:04:05"))
		return c
	}
	return sqlast.Null()
}

func (g *Generator) intLiteral(t sqlast.DataType) sqlast.Constant {
	lo, hi, _ := t.IntRange()
	if util.Chance(g.Rand, EdgeLiteralProb) {
		edges := []int64{lo + 1, hi, 0, -1, 1}
		return sqlast.MustInt(t, util.Pick(g.Rand, edges))
	}
	bound := int64(BigIntLiteralMax)
	switch t {
	case sqlast.TypeSmallInt:
		bound = SmallIntLiteralMax
	case sqlast.TypeInt:
		bound = IntLiteralMax
	}
	v := g.Rand.Int63n(2*bound+1) - bound
	return sqlast.MustInt(t, max(min(v, hi), lo))
}
