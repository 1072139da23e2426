// Package compare runs query pairs and decides whether their results agree
// under ordered, multiset or set semantics.
package compare

import (
	"context"
	"sort"
	"strings"
)

// Value is one cell: a string rendering or NULL.
type Value struct {
	S    string
	Null bool
}

// String renders NULL as the bare word NULL.
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	return v.S
}

// Row is one result row.
type Row []Value

// Key encodes the row so that distinct rows never collide; NULL never
// equals the string "NULL".
func (r Row) Key() string {
	var b strings.Builder
	for i, v := range r {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		if v.Null {
			b.WriteByte(0)
			continue
		}
		b.WriteByte(1)
		b.WriteString(v.S)
	}
	return b.String()
}

// String renders the row tab separated.
func (r Row) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}

// ResultSet is an ordered list of rows.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows; a nil set has none.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Executor runs a query and returns its rows with the driver's text for
// every cell.
type Executor interface {
	Query(ctx context.Context, query string) (*ResultSet, error)
}

// Concat appends the rows of every set in order. Column names come from the
// first set.
func Concat(sets ...*ResultSet) *ResultSet {
	out := &ResultSet{}
	for i, rs := range sets {
		if rs == nil {
			continue
		}
		if i == 0 || out.Columns == nil {
			out.Columns = append([]string(nil), rs.Columns...)
		}
		out.Rows = append(out.Rows, rs.Rows...)
	}
	return out
}

// Dedup returns the distinct rows of rs in first-seen order.
func Dedup(rs *ResultSet) *ResultSet {
	out := &ResultSet{Columns: append([]string(nil), rs.Columns...)}
	seen := make(map[string]struct{}, len(rs.Rows))
	for _, r := range rs.Rows {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// Contains reports whether row occurs in rs.
func Contains(rs *ResultSet, row Row) bool {
	k := row.Key()
	for _, r := range rs.Rows {
		if r.Key() == k {
			return true
		}
	}
	return false
}

// Diff returns the rows of expected missing from actual and the rows of
// actual not in expected, counting multiplicity. Both lists are sorted by
// row key so the output is stable.
func Diff(expected, actual *ResultSet) (missing, extra []Row) {
	counts := make(map[string]int)
	rows := make(map[string]Row)
	if expected != nil {
		for _, r := range expected.Rows {
			k := r.Key()
			counts[k]++
			rows[k] = r
		}
	}
	if actual != nil {
		for _, r := range actual.Rows {
			k := r.Key()
			counts[k]--
			rows[k] = r
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := counts[k]
		for ; n > 0; n-- {
			missing = append(missing, rows[k])
		}
		for ; n < 0; n++ {
			extra = append(extra, rows[k])
		}
	}
	return missing, extra
}
