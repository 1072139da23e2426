package sqlast

import (
	"strconv"
	"strings"
)

// Printer renders the model as dialect SQL text.
type Printer interface {
	Expr(e Expr) string
	Select(s Select) string
}

// PrinterOptions is the dialect data the base printer is driven by.
type PrinterOptions struct {
	// IdentQuote wraps table and column names when non-empty.
	IdentQuote string
	// TrueLiteral and FalseLiteral spell boolean constants.
	TrueLiteral  string
	FalseLiteral string
	// NullSafeEqual spells the <=> operator, e.g. "IS" for SQLite.
	NullSafeEqual string
	// CastNames maps a type to the name used inside CAST(... AS name).
	CastNames map[DataType]string
	// FuncNames maps neutral function names to dialect spellings.
	FuncNames map[string]string
}

// BasePrinter prints every node with explicit parentheses so that operator
// precedence never depends on the dialect.
type BasePrinter struct {
	Opts PrinterOptions
}

// NewPrinter returns a BasePrinter with defaults filled in.
func NewPrinter(opts PrinterOptions) *BasePrinter {
	if opts.TrueLiteral == "" {
		opts.TrueLiteral = "TRUE"
	}
	if opts.FalseLiteral == "" {
		opts.FalseLiteral = "FALSE"
	}
	if opts.NullSafeEqual == "" {
		opts.NullSafeEqual = string(OpNullSafe)
	}
	return &BasePrinter{Opts: opts}
}

// Expr renders one expression.
func (p *BasePrinter) Expr(e Expr) string {
	var b strings.Builder
	p.writeExpr(&b, e)
	return b.String()
}

// Select renders a full query.
func (p *BasePrinter) Select(s Select) string {
	var b strings.Builder
	p.writeSelect(&b, s)
	return b.String()
}

// Literal renders a constant as a SQL literal.
func (p *BasePrinter) Literal(c Constant) string {
	if c.IsNull() {
		return "NULL"
	}
	t := c.Type()
	switch {
	case t == TypeBoolean:
		if c.BoolValue() {
			return p.Opts.TrueLiteral
		}
		return p.Opts.FalseLiteral
	case t.IsInteger(), t == TypeDecimal:
		return c.String()
	case t.IsApprox():
		s := strconv.FormatFloat(c.Float64(), 'g', -1, 64)
		if t == TypeFloat {
			s = strconv.FormatFloat(c.Float64(), 'g', -1, 32)
		}
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	default:
		return quoteString(c.Str())
	}
}

// Ident quotes a name when the dialect asks for it.
func (p *BasePrinter) Ident(name string) string {
	q := p.Opts.IdentQuote
	if q == "" {
		return name
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func (p *BasePrinter) writeSelect(b *strings.Builder, s Select) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.items) == 0 {
		b.WriteString("*")
	}
	for i, it := range s.items {
		if i > 0 {
			b.WriteString(", ")
		}
		p.writeExpr(b, it.Expr)
		if it.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(p.Ident(it.Alias))
		}
	}
	if len(s.from) > 0 {
		b.WriteString(" FROM ")
		for i, t := range s.from {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Ident(t.Name))
			if t.Alias != "" && t.Alias != t.Name {
				b.WriteString(" AS ")
				b.WriteString(p.Ident(t.Alias))
			}
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		p.writeExpr(b, s.where)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range s.groupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			p.writeExpr(b, g)
		}
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		p.writeExpr(b, s.having)
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			p.writeExpr(b, o.Expr)
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if s.limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatInt(s.limit, 10))
	}
}

func (p *BasePrinter) writeExpr(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("NULL")
	case Constant:
		b.WriteString(p.Literal(n))
	case ColumnRef:
		if n.Table != "" {
			b.WriteString(p.Ident(n.Table))
			b.WriteString(".")
		}
		b.WriteString(p.Ident(n.Name))
	case Unary:
		b.WriteString("(")
		b.WriteString(string(n.Op))
		b.WriteString(" ")
		p.writeExpr(b, n.Expr)
		b.WriteString(")")
	case Postfix:
		b.WriteString("(")
		p.writeExpr(b, n.Expr)
		b.WriteString(" ")
		b.WriteString(string(n.Op))
		b.WriteString(")")
	case Binary:
		op := string(n.Op)
		if n.Op == OpNullSafe {
			op = p.Opts.NullSafeEqual
		}
		b.WriteString("(")
		p.writeExpr(b, n.Left)
		b.WriteString(" ")
		b.WriteString(op)
		b.WriteString(" ")
		p.writeExpr(b, n.Right)
		b.WriteString(")")
	case Func:
		b.WriteString(p.funcName(n.Name))
		b.WriteString("(")
		p.writeList(b, n.Args)
		b.WriteString(")")
	case Aggregate:
		b.WriteString(n.Name)
		b.WriteString("(")
		if n.Distinct {
			b.WriteString("DISTINCT ")
		}
		if n.Arg == nil {
			b.WriteString("*")
		} else {
			p.writeExpr(b, n.Arg)
		}
		b.WriteString(")")
	case Cast:
		b.WriteString("CAST(")
		p.writeExpr(b, n.Expr)
		b.WriteString(" AS ")
		b.WriteString(p.castName(n.To))
		b.WriteString(")")
	case Between:
		b.WriteString("(")
		p.writeExpr(b, n.Expr)
		if n.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" BETWEEN ")
		p.writeExpr(b, n.Lo)
		b.WriteString(" AND ")
		p.writeExpr(b, n.Hi)
		b.WriteString(")")
	case In:
		b.WriteString("(")
		p.writeExpr(b, n.Expr)
		if n.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		p.writeList(b, n.List)
		b.WriteString("))")
	case Exists:
		b.WriteString("(")
		if n.Not {
			b.WriteString("NOT ")
		}
		b.WriteString("EXISTS (")
		p.writeSelect(b, n.Query)
		b.WriteString("))")
	case Opaque:
		b.WriteString(n.SQL)
	}
}

func (p *BasePrinter) writeList(b *strings.Builder, list []Expr) {
	for i, a := range list {
		if i > 0 {
			b.WriteString(", ")
		}
		p.writeExpr(b, a)
	}
}

func (p *BasePrinter) funcName(name string) string {
	if mapped, ok := p.Opts.FuncNames[name]; ok {
		return mapped
	}
	return name
}

func (p *BasePrinter) castName(t DataType) string {
	if name, ok := p.Opts.CastNames[t]; ok {
		return name
	}
	return t.String()
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
