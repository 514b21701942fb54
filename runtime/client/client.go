// Package client provides the runtime client: it opens a database, owns the
// table registry, options and statement cache, and hands out queries.
package client

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/cache"
	"github.com/voilab/acedao/query/compiler"
	"github.com/voilab/acedao/query/executor"
	"github.com/voilab/acedao/query/mapper"
	"github.com/voilab/acedao/schema"
)

// Client is safe for concurrent use. Every operation runs on a fresh
// query.Query.
type Client struct {
	exec        *executor.Executor
	registry    *schema.Registry
	opts        acedao.Options
	cache       cache.Cache
	compiler    *compiler.Compiler
	middlewares []Middleware
	extensions  *ExtensionChain
}

// Option configures a Client.
type Option func(*Client)

// WithMode sets strict or lenient handling of unknown sorts.
func WithMode(mode acedao.Mode) Option {
	return func(c *Client) {
		c.opts.Mode = mode
	}
}

// WithSeparator sets the column alias separator.
func WithSeparator(sep string) Option {
	return func(c *Client) {
		c.opts.Separator = sep
	}
}

// WithCache enables the compiled statement cache.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) {
		c.cache = cc
	}
}

// WithRegistry sets the table registry. A client without one starts empty.
func WithRegistry(r *schema.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// WithMiddleware adds middlewares around every database call.
func WithMiddleware(m ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, m...)
	}
}

// WithExtension adds hooks around every client operation.
func WithExtension(ext Extension) Option {
	return func(c *Client) {
		c.extensions.Add(ext)
	}
}

// Open opens a database with a provider name (mysql, postgres, sqlite) and
// a driver DSN.
func Open(provider, dsn string, options ...Option) (*Client, error) {
	driverName := getDriverName(provider)
	if driverName == "" {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	exec, err := executor.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	c, err := newClient(exec, options)
	if err != nil {
		exec.Close()
		return nil, err
	}
	return c, nil
}

// NewFromDB creates a client from an open database connection.
func NewFromDB(provider string, db *sql.DB, options ...Option) (*Client, error) {
	driverName := getDriverName(provider)
	if driverName == "" {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	exec, err := executor.New(db, driverName)
	if err != nil {
		return nil, err
	}
	return newClient(exec, options)
}

func newClient(exec *executor.Executor, options []Option) (*Client, error) {
	c := &Client{
		exec:       exec,
		opts:       acedao.DefaultOptions(),
		extensions: NewExtensionChain(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.registry == nil {
		c.registry = schema.NewRegistry()
	}
	c.opts.Dialect = exec.Dialect()

	var compOpts []compiler.Option
	if c.cache != nil {
		compOpts = append(compOpts, compiler.WithCache(c.cache))
	}
	comp, err := compiler.New(c.registry, c.opts, compOpts...)
	if err != nil {
		return nil, err
	}
	c.compiler = comp
	c.opts = comp.Options()
	return c, nil
}

// getDriverName maps provider names to Go database driver names
func getDriverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return ""
	}
}

// Connect checks the database connection
func (c *Client) Connect(ctx context.Context) error {
	return c.exec.Ping(ctx)
}

// Close releases the statement cache and closes the database connection
func (c *Client) Close() error {
	return c.exec.Close()
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.exec.DB().DB
}

// Registry returns the table registry.
func (c *Client) Registry() *schema.Registry {
	return c.registry
}

// Options returns the normalized options.
func (c *Client) Options() acedao.Options {
	return c.opts
}

// Compiler returns the shared compiler.
func (c *Client) Compiler() *compiler.Compiler {
	return c.compiler
}

// Query returns a new query running on the client's database.
func (c *Client) Query() *query.Query {
	return query.New(c.compiler, c.database(c.exec))
}

func (c *Client) database(db executor.Database) executor.Database {
	if len(c.middlewares) == 0 {
		return db
	}
	return &middlewareDB{next: db, middlewares: c.middlewares}
}

// Select runs cfg and returns the hydrated records.
func (c *Client) Select(ctx context.Context, cfg *ast.Config) (*mapper.Result, error) {
	res, err := c.extensions.Execute(ctx, fromTable(cfg), "select", cfg, func() (any, error) {
		return c.Query().Select(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.(*mapper.Result)
	return out, nil
}

// One runs cfg and returns the first record, or nil.
func (c *Client) One(ctx context.Context, cfg *ast.Config) (mapper.Record, error) {
	res, err := c.Select(ctx, cfg)
	if err != nil || res == nil || res.Len() == 0 {
		return nil, err
	}
	return res.Records()[0], nil
}

// Delete runs a DELETE built from cfg.
func (c *Client) Delete(ctx context.Context, cfg *ast.Config) (int64, error) {
	return c.count(ctx, fromTable(cfg), "delete", cfg, func() (int64, error) {
		return c.Query().Delete(ctx, cfg)
	})
}

// DeleteByID deletes one row by primary key.
func (c *Client) DeleteByID(ctx context.Context, table string, id any) (int64, error) {
	return c.count(ctx, table, "delete", id, func() (int64, error) {
		return c.Query().DeleteByID(ctx, table, id)
	})
}

// Save inserts or updates a row. See query.Query.Save.
func (c *Client) Save(ctx context.Context, table string, data map[string]any) (int64, error) {
	return c.count(ctx, table, "save", data, func() (int64, error) {
		return c.Query().Save(ctx, table, data)
	})
}

func (c *Client) count(ctx context.Context, table, op string, args any, run func() (int64, error)) (int64, error) {
	res, err := c.extensions.Execute(ctx, table, op, args, func() (any, error) {
		return run()
	})
	if err != nil {
		return 0, err
	}
	n, _ := res.(int64)
	return n, nil
}

func fromTable(cfg *ast.Config) string {
	if cfg == nil {
		return ""
	}
	t, err := ast.ParseTarget(cfg.From)
	if err != nil {
		return cfg.From
	}
	return t.Table
}
