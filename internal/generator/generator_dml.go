package generator

import (
	"fmt"
	"strings"

	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/util"
)

// InsertSQL emits a multi-row INSERT and advances the table's next id.
// Literals are rendered by p so boolean spelling follows the dialect.
func (g *Generator) InsertSQL(tbl *schema.Table, p sqlast.Printer) string {
	rowCount := g.Rand.Intn(InsertRowCountMax) + 1
	cols := make([]string, 0, len(tbl.Columns))
	for _, col := range tbl.Columns {
		cols = append(cols, col.Name)
	}
	values := make([]string, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		vals := make([]string, 0, len(tbl.Columns))
		for _, col := range tbl.Columns {
			if col.Name == "id" {
				vals = append(vals, fmt.Sprintf("%d", tbl.NextID))
				tbl.NextID++
				continue
			}
			vals = append(vals, p.Expr(g.literalForColumn(col)))
		}
		values = append(values, "("+strings.Join(vals, ", ")+")")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", tbl.Name, strings.Join(cols, ", "), strings.Join(values, ", "))
}

func (g *Generator) literalForColumn(col schema.Column) sqlast.Constant {
	if col.Nullable && util.Chance(g.Rand, InsertNullProb) {
		return sqlast.NullOf(col.Type)
	}
	return g.LiteralValue(col.Type)
}
