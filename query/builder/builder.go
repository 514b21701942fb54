// Package builder accumulates the clauses and parameters of one compile pass:
// base fields, joins, where conditions, order by and limit.
package builder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/alias"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/columns"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

// Context is the mutable state of a single compile pass. It must not be
// shared between compiles.
type Context struct {
	opts     acedao.Options
	resolver schema.Resolver
	gen      *sqlgen.Generator

	Base    ast.Target
	Aliases *alias.Tree
	Parts   sqlgen.Parts
	Params  map[string]any

	// alternative names accepted for the base alias
	baseNames map[string]bool
	selected  map[string]bool
}

// NewContext starts a compile pass for base. The FROM clause is set from the
// base descriptor.
func NewContext(resolver schema.Resolver, gen *sqlgen.Generator, opts acedao.Options, base ast.Target) (*Context, error) {
	c := &Context{
		opts:      opts,
		resolver:  resolver,
		gen:       gen,
		Base:      base,
		Aliases:   alias.New(base.Table, base.Alias),
		Params:    make(map[string]any),
		baseNames: map[string]bool{base.Alias: true},
		selected:  make(map[string]bool),
	}

	desc, err := c.Descriptor(base.Table)
	if err != nil {
		return nil, err
	}
	c.Parts.From = gen.TableName(base.Table, desc.EscapeTableName())
	c.Parts.Alias = c.ref(base)
	return c, nil
}

// Options returns the options of the compile pass.
func (c *Context) Options() acedao.Options {
	return c.opts
}

// AliasBase makes name another way to refer to the base table in dotted
// filter names. Deletes rename the base alias to the table name and keep the
// configured alias usable through it.
func (c *Context) AliasBase(name string) {
	if name != "" {
		c.baseNames[name] = true
	}
}

// Descriptor resolves a table descriptor.
func (c *Context) Descriptor(table string) (schema.Descriptor, error) {
	return c.resolver.Resolve(table)
}

// SelectBase adds the base fields resolved from the query's own options.
func (c *Context) SelectBase(fields ast.Fields) error {
	desc, err := c.Descriptor(c.Base.Table)
	if err != nil {
		return err
	}
	c.Select(c.Base, columns.Resolve([]ast.Fields{fields}, desc.DefaultFields()))
	return nil
}

// Select appends "alias.field AS alias<sep>field" columns of target,
// skipping the ones already selected.
func (c *Context) Select(target ast.Target, fields []string) {
	ref := c.ref(target)
	for _, col := range columns.Aliased(target.Alias, fields) {
		col.Ref = ref
		as := col.As(c.opts.Separator)
		if c.selected[as] {
			continue
		}
		c.selected[as] = true
		c.Parts.Columns = append(c.Parts.Columns, fmt.Sprintf("%s AS %s", col.Qualified(), as))
	}
}

// SetDistinct toggles SELECT DISTINCT.
func (c *Context) SetDistinct(distinct bool) {
	c.Parts.Distinct = distinct
}

// SetLimit accepts [count] or [offset, count].
func (c *Context) SetLimit(limit []int) error {
	if len(limit) > 2 {
		return fmt.Errorf("%w: limit takes a count or an [offset, count] pair, got %d values",
			acedao.ErrConfiguration, len(limit))
	}
	for _, n := range limit {
		if n < 0 {
			return fmt.Errorf("%w: negative limit %v", acedao.ErrConfiguration, limit)
		}
	}
	c.Parts.Limit = slices.Clone(limit)
	return nil
}

// Finalize removes duplicate where and order by clauses.
func (c *Context) Finalize() {
	c.Parts.Where = dedupe(c.Parts.Where)
	c.Parts.OrderBy = dedupe(c.Parts.OrderBy)
}

// ref renders a table occurrence in SQL. An escaped table used under its own
// name is quoted like the table, so reserved names stay valid.
func (c *Context) ref(target ast.Target) string {
	if target.Alias != target.Table {
		return target.Alias
	}
	desc, err := c.Descriptor(target.Table)
	if err != nil || !desc.EscapeTableName() {
		return target.Alias
	}
	return c.gen.QuoteIdentifier(target.Alias)
}

// resolveAlias returns the table occurrence an alias stands for.
func (c *Context) resolveAlias(name string) (ast.Target, bool) {
	if c.baseNames[name] {
		return c.Base, true
	}
	table, ok := c.Aliases.Table(name)
	if !ok {
		return ast.Target{}, false
	}
	return ast.Target{Table: table, Alias: name}, true
}

// scope splits "alias.filter". Without an alias the filter applies to def.
func (c *Context) scope(name string, def ast.Target) (target ast.Target, filter string, qualified bool, err error) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return def, name, false, nil
	}

	aliasName, filter := name[:idx], name[idx+1:]
	target, ok := c.resolveAlias(aliasName)
	if !ok {
		return ast.Target{}, "", false, fmt.Errorf("%w: alias %q in filter %q does not exist",
			acedao.ErrConfiguration, aliasName, name)
	}
	return target, filter, true, nil
}

func dedupe(items []string) []string {
	if len(items) < 2 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
