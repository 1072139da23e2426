package schema

import (
	"context"
	"errors"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/compare"
	"sqlancer/internal/sqlast"
)

// ErrNoRows is returned when the sampled tables produced no pivot row.
var ErrNoRows = errors.New("no rows to sample")

// Introspection holds the dialect queries used to read the catalog.
type Introspection struct {
	// TablesQuery lists table names in column 0 and the table kind in
	// column 1 (a value containing "view" marks a view).
	TablesQuery string
	// ColumnsQuery lists name, declared type and a YES/NO nullability flag.
	ColumnsQuery func(table string) string
	// ParseType maps a declared type to a DataType.
	ParseType func(declared string) (sqlast.DataType, bool)
}

// Provider reads schema state through an executor.
type Provider struct {
	Exec    compare.Executor
	Intro   Introspection
	Printer sqlast.Printer
}

// Refresh reads tables, columns and row counts. Columns whose declared type
// the dialect cannot map are left out.
func (p *Provider) Refresh(ctx context.Context) (*State, error) {
	tables, err := p.Exec.Query(ctx, p.Intro.TablesQuery)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list tables")
	}
	state := &State{}
	for _, row := range tables.Rows {
		if len(row) == 0 || row[0].Null {
			continue
		}
		tbl := Table{Name: row[0].S}
		if len(row) > 1 && strings.Contains(strings.ToLower(row[1].S), "view") {
			tbl.IsView = true
		}
		cols, err := p.Exec.Query(ctx, p.Intro.ColumnsQuery(tbl.Name))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "list columns of %s", tbl.Name)
		}
		for _, c := range cols.Rows {
			if len(c) < 2 {
				continue
			}
			typ, ok := p.Intro.ParseType(c[1].S)
			if !ok {
				continue
			}
			col := Column{Name: c[0].S, Type: typ, Nullable: true}
			if len(c) > 2 {
				col.Nullable = strings.EqualFold(c[2].S, "yes")
			}
			if col.Name == "id" && !tbl.IsView {
				tbl.HasPK = true
			}
			tbl.Columns = append(tbl.Columns, col)
		}
		count, err := p.count(ctx, tbl)
		if err != nil {
			return nil, err
		}
		tbl.RowCount = count
		tbl.NextID = count + 1
		state.Tables = append(state.Tables, tbl)
	}
	return state, nil
}

func (p *Provider) count(ctx context.Context, tbl Table) (int64, error) {
	q := sqlast.NewSelect(tbl.Ref()).WithItems(sqlast.SelectItem{Expr: sqlast.Aggregate{Name: "COUNT"}})
	rs, err := p.Exec.Query(ctx, p.Printer.Select(q))
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "count rows of %s", tbl.Name)
	}
	if rs.Len() == 0 || len(rs.Rows[0]) == 0 || rs.Rows[0][0].Null {
		return 0, nil
	}
	n, err := strconv.ParseInt(rs.Rows[0][0].S, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "parse row count of %s", tbl.Name)
	}
	return n, nil
}

// PivotQuery builds the query that samples one random row over the cross
// join of tables, each column aliased table_column.
func PivotQuery(tables []Table, randomFunc string) sqlast.Select {
	return sqlast.NewSelect(Refs(tables)...).
		WithColumns(Columns(tables)...).
		WithOrderBy(sqlast.OrderItem{Expr: sqlast.Opaque{SQL: randomFunc, DataType: sqlast.TypeDouble}}).
		WithLimit(1)
}

// SampleRow fetches a random row over the cross join of tables. It returns
// the row and the query text that produced it.
func SampleRow(ctx context.Context, exec compare.Executor, printer sqlast.Printer, randomFunc string, tables []Table) (sqlast.RowValue, string, error) {
	query := printer.Select(PivotQuery(tables, randomFunc))
	rs, err := exec.Query(ctx, query)
	if err != nil {
		return sqlast.RowValue{}, query, err
	}
	rv, err := RowFromResult(tables, rs)
	return rv, query, err
}

// RowFromResult parses the first row of a pivot query result into typed
// constants. It returns ErrNoRows when rs is empty.
func RowFromResult(tables []Table, rs *compare.ResultSet) (sqlast.RowValue, error) {
	if rs.Len() == 0 {
		return sqlast.RowValue{}, ErrNoRows
	}
	cols := Columns(tables)
	row := rs.Rows[0]
	if len(row) != len(cols) {
		return sqlast.RowValue{}, pkgerrors.Errorf("pivot row has %d cells, expected %d", len(row), len(cols))
	}
	vals := make([]sqlast.Constant, len(cols))
	raw := make([]string, len(cols))
	for i, cell := range row {
		if cell.Null {
			vals[i] = sqlast.NullOf(cols[i].DataType)
			raw[i] = "NULL"
			continue
		}
		v, err := sqlast.ParseConstant(cols[i].DataType, cell.S)
		if err != nil {
			return sqlast.RowValue{}, pkgerrors.Wrapf(err, "pivot column %s", cols[i].Key())
		}
		vals[i] = v
		raw[i] = cell.S
	}
	return sqlast.NewRowValue(cols, vals, raw)
}
