package sqlast

// Expr is a node of the closed expression set. Nodes are values and are
// never mutated after construction; slices handed to constructors are copied.
type Expr interface {
	// Type returns the static type the node is expected to produce.
	Type() DataType
	exprNode()
}

// ColumnRef references a column of a table in the FROM list.
type ColumnRef struct {
	Table    string
	Name     string
	DataType DataType
}

// Col builds a column reference.
func Col(table, name string, t DataType) ColumnRef {
	return ColumnRef{Table: table, Name: name, DataType: t}
}

func (c ColumnRef) Type() DataType { return c.DataType }
func (ColumnRef) exprNode()        {}

// Key identifies the column within a query.
func (c ColumnRef) Key() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Alias is the output name used when the column is fetched, table_column.
func (c ColumnRef) Alias() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "_" + c.Name
}

// UnaryOp is a prefix operator.
type UnaryOp string

const (
	OpNot  UnaryOp = "NOT"
	OpNeg  UnaryOp = "-"
	OpPlus UnaryOp = "+"
)

// Unary applies a prefix operator.
type Unary struct {
	Op   UnaryOp
	Expr Expr
}

func (u Unary) Type() DataType {
	if u.Op == OpNot {
		return TypeBoolean
	}
	return u.Expr.Type()
}
func (Unary) exprNode() {}

// PostfixOp is one of the IS tests.
type PostfixOp string

const (
	OpIsNull     PostfixOp = "IS NULL"
	OpIsNotNull  PostfixOp = "IS NOT NULL"
	OpIsTrue     PostfixOp = "IS TRUE"
	OpIsFalse    PostfixOp = "IS FALSE"
	OpIsNotTrue  PostfixOp = "IS NOT TRUE"
	OpIsNotFalse PostfixOp = "IS NOT FALSE"
)

// Postfix applies an IS test. It never yields NULL.
type Postfix struct {
	Expr Expr
	Op   PostfixOp
}

func (Postfix) Type() DataType { return TypeBoolean }
func (Postfix) exprNode()      {}

// BinaryOp is an infix operator.
type BinaryOp string

const (
	OpAnd      BinaryOp = "AND"
	OpOr       BinaryOp = "OR"
	OpEq       BinaryOp = "="
	OpNe       BinaryOp = "<>"
	OpLt       BinaryOp = "<"
	OpLe       BinaryOp = "<="
	OpGt       BinaryOp = ">"
	OpGe       BinaryOp = ">="
	OpNullSafe BinaryOp = "<=>"
	OpAdd      BinaryOp = "+"
	OpSub      BinaryOp = "-"
	OpMul      BinaryOp = "*"
	OpDiv      BinaryOp = "/"
	OpMod      BinaryOp = "%"
)

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpNullSafe:
		return true
	default:
		return false
	}
}

// IsArithmetic reports whether op is one of + - * / %.
func (op BinaryOp) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	default:
		return false
	}
}

// Binary applies an infix operator.
type Binary struct {
	Left  Expr
	Op    BinaryOp
	Right Expr
}

func (b Binary) Type() DataType {
	if b.Op.IsLogical() || b.Op.IsComparison() {
		return TypeBoolean
	}
	return Promote(b.Left.Type(), b.Right.Type())
}
func (Binary) exprNode() {}

// Func calls a scalar function. Name uses the dialect neutral spelling; the
// printer maps it to the dialect's name.
type Func struct {
	Name string
	Args []Expr
	Ret  DataType
}

// Call builds a function call node.
func Call(name string, ret DataType, args ...Expr) Func {
	return Func{Name: name, Args: append([]Expr(nil), args...), Ret: ret}
}

func (f Func) Type() DataType { return f.Ret }
func (Func) exprNode()        {}

// Aggregate is an aggregate call. A nil Arg means COUNT(*).
type Aggregate struct {
	Name     string
	Arg      Expr
	Distinct bool
}

func (a Aggregate) Type() DataType {
	switch a.Name {
	case "COUNT":
		return TypeBigInt
	case "SUM", "AVG":
		if a.Arg != nil && a.Arg.Type().IsApprox() {
			return TypeDouble
		}
		return TypeDecimal
	}
	if a.Arg == nil {
		return TypeNull
	}
	return a.Arg.Type()
}
func (Aggregate) exprNode() {}

// Cast converts an expression to another type.
type Cast struct {
	Expr Expr
	To   DataType
}

func (c Cast) Type() DataType { return c.To }
func (Cast) exprNode()        {}

// Between is expr [NOT] BETWEEN lo AND hi.
type Between struct {
	Expr   Expr
	Lo, Hi Expr
	Not    bool
}

func (Between) Type() DataType { return TypeBoolean }
func (Between) exprNode()      {}

// In is expr [NOT] IN (list).
type In struct {
	Expr Expr
	List []Expr
	Not  bool
}

// InList builds an IN node.
func InList(e Expr, not bool, list ...Expr) In {
	return In{Expr: e, List: append([]Expr(nil), list...), Not: not}
}

func (In) Type() DataType { return TypeBoolean }
func (In) exprNode()      {}

// Exists is [NOT] EXISTS (subquery).
type Exists struct {
	Query Select
	Not   bool
}

func (Exists) Type() DataType { return TypeBoolean }
func (Exists) exprNode()      {}

// Opaque is a dialect supplied fragment the core cannot interpret. The
// evaluator never folds it.
type Opaque struct {
	SQL      string
	DataType DataType
}

func (o Opaque) Type() DataType { return o.DataType }
func (Opaque) exprNode()        {}

// Not negates e.
func Not(e Expr) Expr { return Unary{Op: OpNot, Expr: e} }

// Is applies an IS test to e.
func Is(e Expr, op PostfixOp) Expr { return Postfix{Expr: e, Op: op} }

// And conjoins a and b. A nil side is dropped.
func And(a, b Expr) Expr {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return Binary{Left: a, Op: OpAnd, Right: b}
}

// Or disjoins a and b.
func Or(a, b Expr) Expr { return Binary{Left: a, Op: OpOr, Right: b} }

// Cmp builds a binary node.
func Cmp(a Expr, op BinaryOp, b Expr) Expr { return Binary{Left: a, Op: op, Right: b} }

// Walk visits e and its children in pre-order. Subqueries are not entered.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case Unary:
		Walk(n.Expr, fn)
	case Postfix:
		Walk(n.Expr, fn)
	case Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case Func:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case Aggregate:
		Walk(n.Arg, fn)
	case Cast:
		Walk(n.Expr, fn)
	case Between:
		Walk(n.Expr, fn)
		Walk(n.Lo, fn)
		Walk(n.Hi, fn)
	case In:
		Walk(n.Expr, fn)
		for _, a := range n.List {
			Walk(a, fn)
		}
	}
}

// Columns returns the distinct column references in e, in first-use order.
func Columns(e Expr) []ColumnRef {
	var out []ColumnRef
	seen := make(map[string]struct{})
	Walk(e, func(n Expr) {
		c, ok := n.(ColumnRef)
		if !ok {
			return
		}
		if _, dup := seen[c.Key()]; dup {
			return
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	})
	return out
}

// Depth returns the height of the expression tree; leaves have depth 1.
func Depth(e Expr) int {
	if e == nil {
		return 0
	}
	d := 0
	switch n := e.(type) {
	case Unary:
		d = Depth(n.Expr)
	case Postfix:
		d = Depth(n.Expr)
	case Binary:
		d = max(Depth(n.Left), Depth(n.Right))
	case Func:
		for _, a := range n.Args {
			d = max(d, Depth(a))
		}
	case Aggregate:
		d = Depth(n.Arg)
	case Cast:
		d = Depth(n.Expr)
	case Between:
		d = max(Depth(n.Expr), Depth(n.Lo), Depth(n.Hi))
	case In:
		d = Depth(n.Expr)
		for _, a := range n.List {
			d = max(d, Depth(a))
		}
	}
	return d + 1
}
