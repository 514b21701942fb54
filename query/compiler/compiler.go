// Package compiler turns query configurations into statements: SQL text,
// named parameters and the alias tree needed to hydrate the rows.
package compiler

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"sort"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/internal/debug"
	"github.com/voilab/acedao/query/alias"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/builder"
	"github.com/voilab/acedao/query/cache"
	"github.com/voilab/acedao/query/columns"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

// Statement is a compiled query. Every compile hands out its own Params; the
// alias tree is read-only and may be shared between goroutines.
type Statement struct {
	SQL       string
	Params    map[string]any
	Base      ast.Target
	Aliases   *alias.Tree
	Separator string
}

// Compiler compiles configurations against a schema.
type Compiler struct {
	resolver schema.Resolver
	opts     acedao.Options
	gen      *sqlgen.Generator
	cache    cache.Cache
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCache reuses statements compiled from identical configurations.
func WithCache(c cache.Cache) Option {
	return func(comp *Compiler) {
		comp.cache = c
	}
}

// New creates a compiler. Empty options are filled with defaults.
func New(resolver schema.Resolver, opts acedao.Options, options ...Option) (*Compiler, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	c := &Compiler{
		resolver: resolver,
		opts:     opts,
		gen:      sqlgen.NewGenerator(opts.Dialect),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Options returns the normalized options.
func (c *Compiler) Options() acedao.Options {
	return c.opts
}

// Generator returns the SQL generator of the compiler's dialect.
func (c *Compiler) Generator() *sqlgen.Generator {
	return c.gen
}

// Select compiles a SELECT.
func (c *Compiler) Select(cfg *ast.Config) (*Statement, error) {
	return c.cached("select", cfg, c.compileSelect)
}

// Delete compiles a filtered DELETE. The base alias is replaced by the bare
// table name; dotted filter names may keep using the configured alias.
func (c *Compiler) Delete(cfg *ast.Config) (*Statement, error) {
	return c.cached("delete", cfg, c.compileDelete)
}

func (c *Compiler) compileSelect(cfg *ast.Config) (*Statement, error) {
	base, err := baseTarget(cfg)
	if err != nil {
		return nil, err
	}
	ctx, err := builder.NewContext(c.resolver, c.gen, c.opts, base)
	if err != nil {
		return nil, err
	}

	ctx.SetDistinct(cfg.Distinct)
	if err := ctx.SelectBase(cfg.Fields); err != nil {
		return nil, err
	}
	if err := c.apply(ctx, cfg, true); err != nil {
		return nil, err
	}
	if err := ctx.SetLimit(cfg.Limit); err != nil {
		return nil, err
	}
	ctx.Finalize()

	return c.statement(ctx, c.gen.GenerateSelect(&ctx.Parts)), nil
}

func (c *Compiler) compileDelete(cfg *ast.Config) (*Statement, error) {
	base, err := baseTarget(cfg)
	if err != nil {
		return nil, err
	}
	configured := base.Alias
	base.Alias = base.Table

	ctx, err := builder.NewContext(c.resolver, c.gen, c.opts, base)
	if err != nil {
		return nil, err
	}
	ctx.AliasBase(configured)

	if err := c.apply(ctx, cfg, false); err != nil {
		return nil, err
	}
	ctx.Finalize()

	return c.statement(ctx, c.gen.GenerateDelete(&ctx.Parts)), nil
}

// apply compiles joins, where filters and, for selects, order by filters.
func (c *Compiler) apply(ctx *builder.Context, cfg *ast.Config, sorts bool) error {
	for _, j := range cfg.Join {
		if err := ctx.Join(j, ctx.Base); err != nil {
			return err
		}
	}
	for _, f := range cfg.Where {
		if err := ctx.AddWhere(f); err != nil {
			return err
		}
	}
	if !sorts {
		return nil
	}
	for _, s := range cfg.OrderBy {
		if err := ctx.AddSort(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) statement(ctx *builder.Context, sql string) *Statement {
	return &Statement{
		SQL:       sql,
		Params:    ctx.Params,
		Base:      ctx.Base,
		Aliases:   ctx.Aliases,
		Separator: c.opts.Separator,
	}
}

func (c *Compiler) cached(op string, cfg *ast.Config, compile func(*ast.Config) (*Statement, error)) (*Statement, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil query configuration", acedao.ErrConfiguration)
	}
	if c.cache == nil {
		return compile(cfg)
	}

	base, err := baseTarget(cfg)
	if err != nil {
		return nil, err
	}
	key, err := cache.Key(op, base.Table, cfg)
	if err != nil {
		debug.Debug("statement not cacheable", "error", err)
		return compile(cfg)
	}
	if v, ok := c.cache.Get(key); ok {
		return v.(*Statement).clone(), nil
	}

	stmt, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, stmt, 0)
	return stmt.clone(), nil
}

// clone copies the statement so that callers never share a Params map with
// the cache.
func (s *Statement) clone() *Statement {
	out := *s
	out.Params = maps.Clone(s.Params)
	return &out
}

func baseTarget(cfg *ast.Config) (ast.Target, error) {
	if cfg.From == "" {
		return ast.Target{}, fmt.Errorf("%w: missing from", acedao.ErrConfiguration)
	}
	return ast.ParseTarget(cfg.From)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DeleteByID compiles a DELETE by primary key.
func (c *Compiler) DeleteByID(table string, id any) (*Statement, error) {
	desc, err := c.resolver.Resolve(table)
	if err != nil {
		return nil, err
	}
	if id == nil || id == "" {
		return nil, fmt.Errorf("%w: delete from %q without an id", acedao.ErrConfiguration, table)
	}
	return &Statement{
		SQL:       c.gen.GenerateDeleteByID(c.gen.TableName(table, desc.EscapeTableName())),
		Params:    map[string]any{":id": id},
		Base:      ast.Target{Table: table, Alias: table},
		Separator: c.opts.Separator,
	}, nil
}

// Save compiles an INSERT when data has no id (or an empty one) and an
// UPDATE by id otherwise. Auditing tables get their journal fields injected
// first. The returned flag is true for inserts.
func (c *Compiler) Save(table string, data map[string]any) (*Statement, bool, error) {
	desc, err := c.resolver.Resolve(table)
	if err != nil {
		return nil, false, err
	}

	values := make(map[string]any, len(data)+2)
	for k, v := range data {
		values[k] = v
	}
	id, hasID := values[columns.PrimaryKey]
	insert := !hasID || isEmpty(id)
	delete(values, columns.PrimaryKey)

	if desc.SupportsAuditing() {
		for k, v := range desc.AuditFields(!insert) {
			values[k] = v
		}
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		if !identifier.MatchString(col) {
			return nil, false, fmt.Errorf("%w: invalid column name %q", acedao.ErrConfiguration, col)
		}
		if allowed := desc.AllowedFields(); len(allowed) > 0 && !slices.Contains(allowed, col) && !isAuditField(desc, col) {
			return nil, false, fmt.Errorf("%w: column %q is not allowed on table %q", acedao.ErrConfiguration, col, table)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	params := make(map[string]any, len(values)+1)
	for col, v := range values {
		params[":"+col] = v
	}

	name := c.gen.TableName(table, desc.EscapeTableName())
	stmt := &Statement{
		Params:    params,
		Base:      ast.Target{Table: table, Alias: table},
		Separator: c.opts.Separator,
	}
	if insert {
		stmt.SQL = c.gen.GenerateInsert(name, cols)
		return stmt, true, nil
	}

	if len(cols) == 0 {
		return nil, false, fmt.Errorf("%w: update of %q without any column", acedao.ErrConfiguration, table)
	}
	params[":id"] = id
	stmt.SQL = c.gen.GenerateUpdate(name, cols)
	return stmt, false, nil
}

func isAuditField(desc schema.Descriptor, col string) bool {
	switch col {
	case "created_by", "created_at", "updated_by", "updated_at":
		return desc.SupportsAuditing()
	}
	return false
}

// isEmpty reports whether an id asks for an insert: nil, the zero value of
// its type, or "0".
func isEmpty(v any) bool {
	switch id := v.(type) {
	case nil:
		return true
	case string:
		return id == "" || id == "0"
	}
	return reflect.ValueOf(v).IsZero()
}
