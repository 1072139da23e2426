// Package schema tracks the tables the oracles query and samples pivot rows.
package schema

import (
	"math/rand"

	"sqlancer/internal/sqlast"
)

// Column describes a table column.
type Column struct {
	Name     string
	Type     sqlast.DataType
	Nullable bool
	HasIndex bool
}

// Ref returns a reference to the column qualified by table.
func (c Column) Ref(table string) sqlast.ColumnRef {
	return sqlast.Col(table, c.Name, c.Type)
}

// Table describes a database table.
type Table struct {
	Name     string
	Columns  []Column
	HasPK    bool
	NextID   int64
	RowCount int64
	IsView   bool
}

// Ref returns the FROM-list entry for the table.
func (t Table) Ref() sqlast.TableRef {
	return sqlast.TableRef{Name: t.Name}
}

// ColumnRefs returns references to every column in declaration order.
func (t Table) ColumnRefs() []sqlast.ColumnRef {
	out := make([]sqlast.ColumnRef, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Ref(t.Name))
	}
	return out
}

// ColumnByName returns a column by name if present.
func (t Table) ColumnByName(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// State is a snapshot of the schema.
type State struct {
	Tables []Table
}

// BaseTables returns non-view tables in creation order.
func (s State) BaseTables() []Table {
	out := make([]Table, 0, len(s.Tables))
	for _, tbl := range s.Tables {
		if tbl.IsView {
			continue
		}
		out = append(out, tbl)
	}
	return out
}

// HasTables reports whether any tables exist in the schema state.
func (s State) HasTables() bool {
	return len(s.Tables) > 0
}

// TableByName returns a table by name if present.
func (s State) TableByName(name string) (Table, bool) {
	for _, tbl := range s.Tables {
		if tbl.Name == name {
			return tbl, true
		}
	}
	return Table{}, false
}

// NonEmptyTables returns the tables whose last refresh counted rows.
func (s State) NonEmptyTables() []Table {
	out := make([]Table, 0, len(s.Tables))
	for _, tbl := range s.Tables {
		if tbl.RowCount > 0 {
			out = append(out, tbl)
		}
	}
	return out
}

// RandomTables picks between 1 and maxTables distinct tables from candidates.
func RandomTables(r *rand.Rand, candidates []Table, maxTables int) []Table {
	if len(candidates) == 0 {
		return nil
	}
	maxTables = min(max(maxTables, 1), len(candidates))
	n := 1 + r.Intn(maxTables)
	perm := r.Perm(len(candidates))
	out := make([]Table, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, candidates[idx])
	}
	return out
}

// RandomNonEmptyTables picks between 1 and maxTables tables that hold rows.
func (s State) RandomNonEmptyTables(r *rand.Rand, maxTables int) []Table {
	return RandomTables(r, s.NonEmptyTables(), maxTables)
}

// Columns returns references to every column of the given tables.
func Columns(tables []Table) []sqlast.ColumnRef {
	var out []sqlast.ColumnRef
	for _, t := range tables {
		out = append(out, t.ColumnRefs()...)
	}
	return out
}

// Refs returns the FROM-list entries of the given tables.
func Refs(tables []Table) []sqlast.TableRef {
	out := make([]sqlast.TableRef, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Ref())
	}
	return out
}
