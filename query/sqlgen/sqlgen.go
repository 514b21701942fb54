// Package sqlgen assembles the SQL statements emitted by the query compiler
// for the supported dialects, and tokenizes the filter fragments spliced
// into them.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/voilab/acedao"
)

// Query is a generated statement with its named parameters, keyed by
// ":name" exactly as they appear in SQL.
type Query struct {
	SQL    string
	Params map[string]any
}

// Join is one LEFT or INNER JOIN clause.
type Join struct {
	Type  string // "LEFT" or "INNER"
	Table string // rendered table name, quoted when escaped
	Alias string
	On    []string
}

// Parts are the clauses of a SELECT or a filtered DELETE.
type Parts struct {
	Distinct bool
	Columns  []string
	From     string
	Alias    string
	Joins    []Join
	Where    []string
	OrderBy  []string
	Limit    []int
}

// Generator renders statements for one dialect.
type Generator struct {
	dialect string
}

// NewGenerator creates a generator for a provider or driver name. Unknown
// names fall back to MySQL.
func NewGenerator(provider string) *Generator {
	dialect, err := acedao.ParseDialect(provider)
	if err != nil {
		dialect = acedao.MySQL
	}
	return &Generator{dialect: dialect}
}

// Dialect returns the dialect the generator renders.
func (g *Generator) Dialect() string {
	return g.dialect
}

// QuoteIdentifier quotes a table or column name.
func (g *Generator) QuoteIdentifier(name string) string {
	if g.dialect == acedao.MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableName renders a table name, quoted when escape is set.
func (g *Generator) TableName(name string, escape bool) string {
	if escape {
		return g.QuoteIdentifier(name)
	}
	return name
}

// GenerateSelect renders SELECT, FROM, LEFT JOINs, INNER JOINs, WHERE,
// ORDER BY and LIMIT in that order.
func (g *Generator) GenerateSelect(p *Parts) string {
	var parts []string

	selectKw := "SELECT"
	if p.Distinct {
		selectKw = "SELECT DISTINCT"
	}
	parts = append(parts, fmt.Sprintf("%s %s", selectKw, strings.Join(p.Columns, ", ")))
	parts = append(parts, "FROM "+from(p.From, p.Alias))
	parts = append(parts, g.joins(p.Joins)...)

	if len(p.Where) > 0 {
		parts = append(parts, "WHERE "+strings.Join(p.Where, " AND "))
	}
	if len(p.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(p.OrderBy, ", "))
	}
	if limit := g.limit(p.Limit); limit != "" {
		parts = append(parts, limit)
	}

	return strings.Join(parts, " ")
}

// GenerateDelete renders a filtered DELETE. The parts must reference the
// table by its bare name. MySQL deletes through a multi-table DELETE when
// joins are present; other dialects restrict by primary key through a
// subquery.
func (g *Generator) GenerateDelete(p *Parts) string {
	where := ""
	if len(p.Where) > 0 {
		where = "WHERE " + strings.Join(p.Where, " AND ")
	}

	if len(p.Joins) == 0 {
		return join("DELETE FROM "+p.From, where)
	}

	joins := strings.Join(g.joins(p.Joins), " ")
	if g.dialect == acedao.MySQL {
		return join(fmt.Sprintf("DELETE %s FROM %s", p.Alias, p.From), joins, where)
	}

	sub := join(fmt.Sprintf("SELECT %s.id FROM %s", p.Alias, p.From), joins, where)
	return fmt.Sprintf("DELETE FROM %s WHERE %s.id IN (%s)", p.From, p.Alias, sub)
}

// GenerateDeleteByID renders a DELETE by primary key bound to :id.
func (g *Generator) GenerateDeleteByID(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = :id", table)
}

// GenerateInsert renders an INSERT binding every column to ":column".
func (g *Generator) GenerateInsert(table string, columns []string) string {
	if len(columns) == 0 {
		if g.dialect == acedao.MySQL {
			return fmt.Sprintf("INSERT INTO %s () VALUES ()", table)
		}
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", table)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = g.QuoteIdentifier(col)
		placeholders[i] = ":" + col
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

// GenerateUpdate renders an UPDATE by primary key binding every column to
// ":column" and the key to ":id".
func (g *Generator) GenerateUpdate(table string, columns []string) string {
	set := make([]string, len(columns))
	for i, col := range columns {
		set[i] = fmt.Sprintf("%s = :%s", g.QuoteIdentifier(col), col)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", table, strings.Join(set, ", "))
}

func (g *Generator) joins(joins []Join) []string {
	var left, inner []string
	for _, j := range joins {
		clause := fmt.Sprintf("%s JOIN %s ON %s", j.Type, from(j.Table, j.Alias), strings.Join(j.On, " AND "))
		if j.Type == "INNER" {
			inner = append(inner, clause)
		} else {
			left = append(left, clause)
		}
	}
	return append(left, inner...)
}

func (g *Generator) limit(limit []int) string {
	switch len(limit) {
	case 1:
		return fmt.Sprintf("LIMIT %d", limit[0])
	case 2:
		if g.dialect == acedao.Postgres {
			return fmt.Sprintf("LIMIT %d OFFSET %d", limit[1], limit[0])
		}
		return fmt.Sprintf("LIMIT %d, %d", limit[0], limit[1])
	default:
		return ""
	}
}

func from(table, alias string) string {
	if alias == "" || alias == table {
		return table
	}
	return table + " " + alias
}

func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
