package sqlast

// TableRef names a table in the FROM list.
type TableRef struct {
	Name  string
	Alias string
}

// Ref returns the name columns use to qualify themselves.
func (t TableRef) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// SelectItem is one output column.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Select is an immutable SELECT statement. Every With method returns a
// modified copy; the receiver and any slice passed in are left untouched.
type Select struct {
	distinct bool
	items    []SelectItem
	from     []TableRef
	where    Expr
	groupBy  []Expr
	having   Expr
	orderBy  []OrderItem
	limit    int64
}

// NewSelect starts a query over the given tables.
func NewSelect(from ...TableRef) Select {
	return Select{from: append([]TableRef(nil), from...), limit: -1}
}

func (s Select) Distinct() bool       { return s.distinct }
func (s Select) Items() []SelectItem  { return append([]SelectItem(nil), s.items...) }
func (s Select) From() []TableRef     { return append([]TableRef(nil), s.from...) }
func (s Select) Where() Expr          { return s.where }
func (s Select) GroupBy() []Expr      { return append([]Expr(nil), s.groupBy...) }
func (s Select) Having() Expr         { return s.having }
func (s Select) OrderBy() []OrderItem { return append([]OrderItem(nil), s.orderBy...) }

// Limit returns the row limit, or -1 when unbounded.
func (s Select) Limit() int64 { return s.limit }

// WithDistinct toggles SELECT DISTINCT.
func (s Select) WithDistinct(v bool) Select {
	s.distinct = v
	return s.clone()
}

// WithItems replaces the output list.
func (s Select) WithItems(items ...SelectItem) Select {
	s = s.clone()
	s.items = append([]SelectItem(nil), items...)
	return s
}

// WithColumns replaces the output list with the columns aliased table_column.
func (s Select) WithColumns(cols ...ColumnRef) Select {
	items := make([]SelectItem, 0, len(cols))
	for _, c := range cols {
		items = append(items, SelectItem{Expr: c, Alias: c.Alias()})
	}
	return s.WithItems(items...)
}

// WithWhere replaces the WHERE predicate; nil removes it.
func (s Select) WithWhere(e Expr) Select {
	s = s.clone()
	s.where = e
	return s
}

// WithGroupBy replaces the grouping keys.
func (s Select) WithGroupBy(exprs ...Expr) Select {
	s = s.clone()
	s.groupBy = append([]Expr(nil), exprs...)
	return s
}

// WithHaving replaces the HAVING predicate; nil removes it.
func (s Select) WithHaving(e Expr) Select {
	s = s.clone()
	s.having = e
	return s
}

// WithOrderBy replaces the ordering; no arguments removes it.
func (s Select) WithOrderBy(items ...OrderItem) Select {
	s = s.clone()
	s.orderBy = append([]OrderItem(nil), items...)
	return s
}

// WithLimit sets the row limit; a negative n removes it.
func (s Select) WithLimit(n int64) Select {
	s = s.clone()
	if n < 0 {
		n = -1
	}
	s.limit = n
	return s
}

// ItemExprs returns the expressions of the output list.
func (s Select) ItemExprs() []Expr {
	out := make([]Expr, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Expr)
	}
	return out
}

func (s Select) clone() Select {
	s.items = append([]SelectItem(nil), s.items...)
	s.from = append([]TableRef(nil), s.from...)
	s.groupBy = append([]Expr(nil), s.groupBy...)
	s.orderBy = append([]OrderItem(nil), s.orderBy...)
	return s
}
