package generator

import (
	"fmt"
	"strings"

	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/util"
)

// GenerateTable creates a randomized table definition: a BIGINT primary key
// named id followed by c0..cN typed from the dialect's column types.
func (g *Generator) GenerateTable() schema.Table {
	colCount := g.Rand.Intn(g.Opts.MaxColumns-1) + 1
	cols := make([]schema.Column, 0, colCount+1)
	cols = append(cols, schema.Column{Name: "id", Type: sqlast.TypeBigInt})
	for i := 0; i < colCount; i++ {
		cols = append(cols, schema.Column{
			Name:     fmt.Sprintf("c%d", i),
			Type:     util.Pick(g.Rand, g.Opts.ColumnTypes),
			Nullable: util.Chance(g.Rand, ColumnNullableProb),
			HasIndex: util.Chance(g.Rand, ColumnIndexProb),
		})
	}
	return schema.Table{
		Name:    g.NextTableName(),
		Columns: cols,
		HasPK:   true,
		NextID:  1,
	}
}

// TypeName spells t in DDL.
func (g *Generator) TypeName(t sqlast.DataType) string {
	if name, ok := g.Opts.TypeNames[t]; ok {
		return name
	}
	return t.String()
}

// CreateTableSQL renders a CREATE TABLE statement for a schema table.
func (g *Generator) CreateTableSQL(tbl schema.Table) string {
	parts := make([]string, 0, len(tbl.Columns)+1)
	for _, col := range tbl.Columns {
		line := fmt.Sprintf("%s %s", col.Name, g.TypeName(col.Type))
		if !col.Nullable {
			line += " NOT NULL"
		}
		parts = append(parts, line)
	}
	if tbl.HasPK {
		parts = append(parts, "PRIMARY KEY (id)")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", tbl.Name, strings.Join(parts, ", "))
}

// CreateTableStatements returns the CREATE TABLE statement followed by one
// CREATE INDEX per indexed column. Inline index syntax is not portable.
func (g *Generator) CreateTableStatements(tbl schema.Table) []string {
	stmts := []string{g.CreateTableSQL(tbl)}
	for _, col := range tbl.Columns {
		if col.HasIndex {
			stmts = append(stmts, indexSQL(tbl.Name, col.Name))
		}
	}
	return stmts
}

// CreateIndexSQL indexes a random unindexed column and marks it in tbl.
func (g *Generator) CreateIndexSQL(tbl *schema.Table) (string, bool) {
	candidates := make([]*schema.Column, 0, len(tbl.Columns))
	for i := range tbl.Columns {
		col := &tbl.Columns[i]
		if col.HasIndex || col.Name == "id" {
			continue
		}
		candidates = append(candidates, col)
	}
	if len(candidates) == 0 {
		return "", false
	}
	col := util.Pick(g.Rand, candidates)
	col.HasIndex = true
	return indexSQL(tbl.Name, col.Name), true
}

// DropTableSQL drops a table if it exists.
func DropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", name)
}

func indexSQL(table, column string) string {
	return fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)", table, column, table, column)
}
