package sqlast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStaleRowValue reports a lookup of a column the row was not sampled with.
var ErrStaleRowValue = errors.New("column not present in row value")

// RowValue is a sampled row: an ordered mapping from columns to constants,
// plus the text the driver returned for each cell.
type RowValue struct {
	columns []ColumnRef
	values  []Constant
	raw     []string
	index   map[string]int
}

// NewRowValue builds a row. raw may be nil, in which case the rendered
// constants stand in for driver text.
func NewRowValue(cols []ColumnRef, vals []Constant, raw []string) (RowValue, error) {
	if len(cols) != len(vals) {
		return RowValue{}, fmt.Errorf("row value: %d columns but %d values", len(cols), len(vals))
	}
	if raw != nil && len(raw) != len(vals) {
		return RowValue{}, fmt.Errorf("row value: %d values but %d raw cells", len(vals), len(raw))
	}
	rv := RowValue{
		columns: append([]ColumnRef(nil), cols...),
		values:  append([]Constant(nil), vals...),
		index:   make(map[string]int, len(cols)),
	}
	if raw != nil {
		rv.raw = append([]string(nil), raw...)
	} else {
		rv.raw = make([]string, len(vals))
		for i, v := range vals {
			rv.raw[i] = v.String()
		}
	}
	for i, c := range cols {
		rv.index[c.Key()] = i
	}
	return rv, nil
}

// Len returns the number of columns.
func (r RowValue) Len() int { return len(r.columns) }

// Columns returns the row's columns in order.
func (r RowValue) Columns() []ColumnRef { return append([]ColumnRef(nil), r.columns...) }

// Value returns the i-th constant.
func (r RowValue) Value(i int) Constant { return r.values[i] }

// Raw returns the driver text of the i-th cell.
func (r RowValue) Raw(i int) string { return r.raw[i] }

// Get returns the value bound to col.
func (r RowValue) Get(col ColumnRef) (Constant, error) {
	i, ok := r.index[col.Key()]
	if !ok {
		return Constant{}, fmt.Errorf("%w: %s", ErrStaleRowValue, col.Key())
	}
	return r.values[i], nil
}

// String renders the row as col=value pairs.
func (r RowValue) String() string {
	parts := make([]string, 0, len(r.columns))
	for i, c := range r.columns {
		parts = append(parts, c.Key()+"="+r.values[i].String())
	}
	return strings.Join(parts, ", ")
}
